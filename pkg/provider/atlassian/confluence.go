package atlassian

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/minnahq/minna/pkg/provider"
)

const confluenceCursorKey = "atlassian:confluence"

type confluenceListResponse struct {
	Results []confluencePage `json:"results"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

type confluencePage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

func (p *Provider) syncConfluence(sc provider.SyncContext, creds credentials, cloudID string, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name()}

	cursor, err := provider.GetSyncCursor(sc, confluenceCursorKey)
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	var maxUpdated time.Time
	url := fmt.Sprintf("%s/ex/confluence/%s/wiki/rest/api/content?expand=space,body.storage,version&limit=50",
		apiBase, cloudID)
	for url != "" {
		var resp confluenceListResponse
		if err := p.get(sc, creds, url, &resp); err != nil {
			return summary, err
		}
		summary.APICalls++

		for _, pg := range resp.Results {
			updated, perr := time.Parse(time.RFC3339, pg.Version.When)
			if perr == nil && updated.Before(since) {
				continue
			}
			summary.ItemsScanned++
			if err := p.indexConfluencePage(sc, cloudID, pg); err != nil {
				return summary, fmt.Errorf("indexing %s: %w", pg.ID, err)
			}
			summary.DocumentsProcessed++
			if updated.After(maxUpdated) {
				maxUpdated = updated
			}
		}

		if resp.Links.Next == "" {
			break
		}
		url = apiBase + resp.Links.Next
	}

	if !maxUpdated.IsZero() {
		if err := provider.SetSyncCursor(sc, confluenceCursorKey, maxUpdated.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing confluence cursor: %w", err)
		}
	}
	return summary, nil
}

func (p *Provider) indexConfluencePage(sc provider.SyncContext, cloudID string, pg confluencePage) error {
	uri := fmt.Sprintf("https://%s.atlassian.net/wiki%s", cloudID, pg.Links.WebUI)
	return provider.IndexDocument(sc, provider.Document{
		URI:    uri,
		Source: "confluence",
		Title:  pg.Title,
		Body:   stripHTML(pg.Body.Storage.Value),
	})
}

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	entityPattern = regexp.MustCompile(`&[a-zA-Z#0-9]+;`)
	htmlEntities  = map[string]string{
		"&amp;": "&", "&lt;": "<", "&gt;": ">", "&quot;": `"`, "&#39;": "'", "&nbsp;": " ",
	}
)

// stripHTML removes Confluence storage-format HTML tags and decodes
// common entities, collapsing the remaining whitespace.
func stripHTML(html string) string {
	withoutTags := tagPattern.ReplaceAllString(html, " ")
	decoded := entityPattern.ReplaceAllStringFunc(withoutTags, func(ent string) string {
		if plain, ok := htmlEntities[ent]; ok {
			return plain
		}
		return " "
	})
	return strings.TrimSpace(strings.Join(strings.Fields(decoded), " "))
}
