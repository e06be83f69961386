package atlassian

import (
	"context"
	"encoding/json"
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

type fakeSecrets struct{ email, token string }

func (f fakeSecrets) Get(_ context.Context, key string) (string, error) {
	if key == "atlassian_email" {
		return f.email, nil
	}
	return f.token, nil
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

func TestAtlassian_SyncIndexesJiraAndConfluence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/oauth/token/accessible-resources":
			json.NewEncoder(w).Encode([]map[string]any{{"id": "cloud-1", "url": "https://acme.atlassian.net"}})
		case strings.Contains(r.URL.Path, "/rest/api/3/search"):
			json.NewEncoder(w).Encode(map[string]any{
				"total": 1,
				"issues": []map[string]any{
					{
						"key": "ENG-7",
						"fields": map[string]any{
							"summary": "Fix the thing",
							"updated": "2026-01-02T10:00:00.000-0700",
							"description": map[string]any{
								"type": "doc",
								"content": []map[string]any{
									{"type": "paragraph", "content": []map[string]any{{"type": "text", "text": "details here"}}},
								},
							},
						},
					},
				},
			})
		case strings.Contains(r.URL.Path, "/wiki/rest/api/content"):
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"id": "p1", "title": "Runbook",
						"space":   map[string]any{"key": "ENG"},
						"body":    map[string]any{"storage": map[string]any{"value": "<p>Steps &amp; notes</p>"}},
						"version": map[string]any{"when": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)},
						"_links":  map[string]any{"webui": "/spaces/ENG/pages/p1"},
					},
				},
				"_links": map[string]any{},
			})
		default:
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
		Secrets: fakeSecrets{email: "me@acme.com", token: "tok"},
		Log:     hclog.NewNullLogger(),
	}

	p := New()
	summary, err := p.Sync(sc, 30, provider.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, 2, summary.DocumentsProcessed)

	jiraDoc, err := s.GetByURI("https://cloud-1.atlassian.net/browse/ENG-7")
	require.NoError(t, err)
	require.Contains(t, jiraDoc.Body, "details here")

	wikiDoc, err := s.GetByURI("https://cloud-1.atlassian.net/wiki/spaces/ENG/pages/p1")
	require.NoError(t, err)
	require.Equal(t, "Steps & notes", wikiDoc.Body)
}
