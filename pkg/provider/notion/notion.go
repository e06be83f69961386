// Package notion syncs Notion pages as Markdown-ish documents,
// grounded on the framework's call_with_backoff helper and indexing
// helpers in pkg/provider. Edges are reserved for a future version.
package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/httpx"
)

const apiBase = "https://api.notion.com/v1"
const notionVersion = "2022-06-28"

// Provider implements provider.SyncProvider for Notion.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string        { return "notion" }
func (p *Provider) DisplayName() string { return "Notion" }

func (p *Provider) Discover(sc provider.SyncContext) (any, error) {
	token, err := sc.Secrets.Get(sc.Context, "notion_token")
	if err != nil {
		return nil, err
	}
	var resp map[string]any
	if err := p.post(sc, token, apiBase+"/users/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type searchRequest struct {
	Filter      searchFilter `json:"filter"`
	Sort        searchSort   `json:"sort"`
	StartCursor string       `json:"start_cursor,omitempty"`
	PageSize    int          `json:"page_size"`
}

type searchFilter struct {
	Value    string `json:"value"`
	Property string `json:"property"`
}

type searchSort struct {
	Direction string `json:"direction"`
	Timestamp string `json:"timestamp"`
}

type page struct {
	ID             string                     `json:"id"`
	URL            string                     `json:"url"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Properties     map[string]json.RawMessage `json:"properties"`
}

type searchResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

func (p *Provider) Sync(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name(), UpdatedAt: time.Now().UTC()}

	token, err := sc.Secrets.Get(sc.Context, "notion_token")
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, p.Name())
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	var startCursor string
	var maxEdited time.Time
	for {
		req := searchRequest{
			Filter:      searchFilter{Value: "page", Property: "object"},
			Sort:        searchSort{Direction: "descending", Timestamp: "last_edited_time"},
			StartCursor: startCursor,
			PageSize:    50,
		}
		var resp searchResponse
		if err := p.post(sc, token, apiBase+"/search", req, &resp); err != nil {
			return summary, err
		}

		stop := false
		for _, pg := range resp.Results {
			if pg.LastEditedTime.Before(since) {
				stop = true
				break
			}
			summary.ItemsScanned++
			if err := p.indexPage(sc, token, pg); err != nil {
				return summary, fmt.Errorf("indexing page %s: %w", pg.ID, err)
			}
			summary.DocumentsProcessed++
			if pg.LastEditedTime.After(maxEdited) {
				maxEdited = pg.LastEditedTime
			}
		}

		if stop || !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	if !maxEdited.IsZero() {
		if err := provider.SetSyncCursor(sc, p.Name(), maxEdited.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing cursor: %w", err)
		}
	}
	return summary, nil
}

func (p *Provider) indexPage(sc provider.SyncContext, token string, pg page) error {
	title := pageTitle(pg)
	body, err := p.renderBlocks(sc, token, pg.ID, 0)
	if err != nil {
		return err
	}
	return provider.IndexDocument(sc, provider.Document{
		URI:    pg.URL,
		Source: "notion",
		Title:  title,
		Body:   body,
	})
}

// pageTitle extracts the title property from a Notion page's
// property bag; Notion models the title as a rich-text array under
// whichever property happens to be of type "title".
func pageTitle(pg page) string {
	for _, raw := range pg.Properties {
		var prop struct {
			Type  string `json:"type"`
			Title []struct {
				PlainText string `json:"plain_text"`
			} `json:"title"`
		}
		if err := json.Unmarshal(raw, &prop); err != nil {
			continue
		}
		if prop.Type != "title" || len(prop.Title) == 0 {
			continue
		}
		var sb strings.Builder
		for _, t := range prop.Title {
			sb.WriteString(t.PlainText)
		}
		return sb.String()
	}
	return "Untitled"
}

func (p *Provider) post(sc provider.SyncContext, token, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling notion request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	resp, err := httpx.CallWithBackoff(sc.HTTP, sc.Log, "notion", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(sc.Context, http.MethodPost, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Notion-Version", notionVersion)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("notion POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Provider) get(sc provider.SyncContext, token, url string, out any) error {
	resp, err := httpx.CallWithBackoff(sc.HTTP, sc.Log, "notion", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(sc.Context, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Notion-Version", notionVersion)
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("notion GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
