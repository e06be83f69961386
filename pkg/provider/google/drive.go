package google

import (
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

const driveCursorKey = "google_workspace:drive"

func (p *Provider) syncDrive(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name()}

	svc, err := p.driveService(sc)
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, driveCursorKey)
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	query := fmt.Sprintf(
		"(('me' in owners) or sharedWithMe) and modifiedTime > '%s' and trashed = false",
		since.UTC().Format(time.RFC3339),
	)

	var maxModified time.Time
	pageToken := ""
	for {
		call := svc.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, webViewLink, modifiedTime, owners, description)").
			PageSize(100).
			Context(sc.Context)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		summary.APICalls++
		if err != nil {
			return summary, fmt.Errorf("drive files.list: %w", err)
		}

		for _, f := range res.Files {
			summary.ItemsScanned++
			if err := p.indexDriveFile(sc, f); err != nil {
				return summary, fmt.Errorf("indexing drive file %s: %w", f.Id, err)
			}
			summary.DocumentsProcessed++
			modified, perr := time.Parse(time.RFC3339, f.ModifiedTime)
			if perr == nil && modified.After(maxModified) {
				maxModified = modified
			}
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	if !maxModified.IsZero() {
		if err := provider.SetSyncCursor(sc, driveCursorKey, maxModified.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing drive cursor: %w", err)
		}
	}
	return summary, nil
}

// indexDriveFile indexes file metadata only: the body is the file's
// description, or its name when the description is empty. File content
// is not fetched.
func (p *Provider) indexDriveFile(sc provider.SyncContext, f *drive.File) error {
	body := f.Description
	if body == "" {
		body = f.Name
	}
	if err := provider.IndexDocument(sc, provider.Document{
		URI:    f.WebViewLink,
		Source: "google_drive",
		Title:  f.Name,
		Body:   body,
	}); err != nil {
		return err
	}

	docNode := store.NodeRef{NodeType: "document", Provider: "google_drive", ExternalID: f.Id, DisplayName: strPtr(f.Name)}
	var edges []provider.Edge
	for _, owner := range f.Owners {
		id := owner.EmailAddress
		if id == "" {
			id = owner.DisplayName
		}
		edges = append(edges, provider.Edge{
			From: store.NodeRef{NodeType: "user", Provider: "google_drive", ExternalID: id, DisplayName: strPtr(owner.DisplayName)},
			To:   docNode, Relation: "AuthorOf",
		})
	}
	return provider.IndexEdges(sc, edges)
}

func strPtr(s string) *string { return &s }
