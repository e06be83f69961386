package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/embedder"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

type fakeSecrets struct{}

func (fakeSecrets) Get(_ context.Context, _ string) (string, error) { return "secret_test", nil }

func TestNotion_SyncRendersBlocksToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/search":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"id": "page1", "url": "https://notion.so/page1",
						"last_edited_time": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
						"properties": map[string]any{
							"title": map[string]any{
								"type":  "title",
								"title": []map[string]any{{"plain_text": "Release Notes"}},
							},
						},
					},
				},
				"has_more": false,
			})
		case strings.HasPrefix(r.URL.Path, "/v1/blocks/"):
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"id": "b1", "type": "heading_1", "has_children": false,
						"heading_1": map[string]any{"rich_text": []map[string]any{{"plain_text": "Overview"}}},
					},
					{
						"id": "b2", "type": "to_do", "has_children": false,
						"to_do": map[string]any{"checked": true, "rich_text": []map[string]any{{"plain_text": "Ship it"}}},
					},
				},
				"has_more": false,
			})
		default:
			body, _ := io.ReadAll(r.Body)
			_ = body
			json.NewEncoder(w).Encode(map[string]any{})
		}
	}))
	defer srv.Close()

	s, err := store.Open(t.TempDir() + "/minna.db")
	require.NoError(t, err)
	defer s.Close()

	sc := provider.SyncContext{
		Context: context.Background(),
		Store:   s,
		Embed:   embedder.HashEmbedder{},
		HTTP:    &http.Client{Transport: rewriteTransport{target: srv.URL}},
		Secrets: fakeSecrets{},
		Log:     hclog.NewNullLogger(),
	}

	p := New()
	summary, err := p.Sync(sc, 30, provider.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DocumentsProcessed)

	doc, err := s.GetByURI("https://notion.so/page1")
	require.NoError(t, err)
	require.Contains(t, doc.Body, "# Overview")
	require.Contains(t, doc.Body, "[x] Ship it")
}

type rewriteTransport struct{ target string }

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u, err := url.Parse(t.target)
	if err != nil {
		return nil, err
	}
	req.URL.Scheme = u.Scheme
	req.URL.Host = u.Host
	return http.DefaultTransport.RoundTrip(req)
}
