package provider

import (
	"fmt"
	"time"
)

// CalculateSince implements the framework's since-window rules:
// mode == full -> now - (sinceDays or 90); else explicit sinceDays ->
// now - sinceDays; else the cursor if non-empty (parsed as RFC3339);
// else now - 30 days.
func CalculateSince(sinceDays int, mode Mode, cursor string) time.Time {
	now := time.Now().UTC()

	if mode == ModeFull {
		days := sinceDays
		if days == 0 {
			days = 90
		}
		return now.AddDate(0, 0, -days)
	}
	if sinceDays > 0 {
		return now.AddDate(0, 0, -sinceDays)
	}
	if cursor != "" {
		if t, err := time.Parse(time.RFC3339, cursor); err == nil {
			return t
		}
	}
	return now.AddDate(0, 0, -30)
}

// IndexDocument upserts doc into the document store and computes and
// stores its embedding. Providers whose body could not be fetched
// (e.g. a 403 on Drive) should pass an empty Body; the document still
// gets indexed as metadata-only.
func IndexDocument(sc SyncContext, doc Document) error {
	title := doc.Title
	row := newDocumentRow(doc)
	id, err := sc.Store.UpsertDocument(row)
	if err != nil {
		return fmt.Errorf("indexing document %q: %w", doc.URI, err)
	}
	row.ID = id
	if doc.Body == "" {
		return nil
	}
	embedInput := doc.Body
	if title != "" {
		embedInput = title + "\n\n" + doc.Body
	}
	vec, err := sc.Embed.Embed(sc.Context, embedInput)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.URI, err)
	}
	if err := sc.Store.UpsertVector(row.ID, vec); err != nil {
		return fmt.Errorf("storing vector for %q: %w", doc.URI, err)
	}
	return nil
}

// IndexEdges upserts every edge into the graph store.
func IndexEdges(sc SyncContext, edges []Edge) error {
	for _, e := range edges {
		weight := e.Weight
		if weight == 0 {
			weight = 1.0
		}
		_, err := sc.Store.UpsertEdge(edgeRefFrom(e, weight))
		if err != nil {
			return fmt.Errorf("indexing edge %s -> %s (%s): %w", e.From.CanonicalID(), e.To.CanonicalID(), e.Relation, err)
		}
	}
	return nil
}

// GetSyncCursor reads a provider's persisted cursor, or "" on first sync.
func GetSyncCursor(sc SyncContext, name string) (string, error) {
	return sc.Store.GetCursor(name)
}

// SetSyncCursor advances a provider's cursor. Callers must only call
// this after a successful sync, never mid-failure.
func SetSyncCursor(sc SyncContext, name, value string) error {
	return sc.Store.SetCursor(name, value)
}
