package google

import (
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

const calendarCursorKey = "google_workspace:calendar"

func (p *Provider) syncCalendar(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name()}

	svc, err := p.calendarService(sc)
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, calendarCursorKey)
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	var maxUpdated time.Time
	pageToken := ""
	for {
		call := svc.Events.List("primary").
			UpdatedMin(since.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			MaxResults(250).
			Context(sc.Context)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		summary.APICalls++
		if err != nil {
			return summary, fmt.Errorf("calendar events.list: %w", err)
		}

		for _, ev := range res.Items {
			summary.ItemsScanned++
			if err := p.indexEvent(sc, ev); err != nil {
				return summary, fmt.Errorf("indexing event %s: %w", ev.Id, err)
			}
			summary.DocumentsProcessed++
			if updated, perr := time.Parse(time.RFC3339, ev.Updated); perr == nil && updated.After(maxUpdated) {
				maxUpdated = updated
			}
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	if !maxUpdated.IsZero() {
		if err := provider.SetSyncCursor(sc, calendarCursorKey, maxUpdated.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing calendar cursor: %w", err)
		}
	}
	return summary, nil
}

func (p *Provider) indexEvent(sc provider.SyncContext, ev *calendar.Event) error {
	body := ev.Description
	if body == "" {
		body = ev.Summary
	}
	if err := provider.IndexDocument(sc, provider.Document{
		URI:    ev.HtmlLink,
		Source: "google_calendar",
		Title:  ev.Summary,
		Body:   body,
	}); err != nil {
		return err
	}

	eventNode := store.NodeRef{NodeType: "document", Provider: "google_calendar", ExternalID: ev.Id, DisplayName: strPtr(ev.Summary)}
	var edges []provider.Edge
	if ev.Organizer != nil {
		edges = append(edges, provider.Edge{
			From: store.NodeRef{NodeType: "user", Provider: "google_calendar", ExternalID: ev.Organizer.Email, DisplayName: strPtr(ev.Organizer.DisplayName)},
			To:   eventNode, Relation: "AuthorOf",
		})
	}
	for _, att := range ev.Attendees {
		edges = append(edges, provider.Edge{
			From: store.NodeRef{NodeType: "user", Provider: "google_calendar", ExternalID: att.Email, DisplayName: strPtr(att.DisplayName)},
			To:   eventNode, Relation: "MentionedIn",
		})
	}
	return provider.IndexEdges(sc, edges)
}
