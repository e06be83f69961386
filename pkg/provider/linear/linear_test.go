package linear

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/embedder"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

type fakeSecrets struct{ token string }

func (f fakeSecrets) Get(_ context.Context, _ string) (string, error) { return f.token, nil }

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

func TestLinear_SyncIndexesIssuesAndEdges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(string(body), "query Issues") {
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"issues": map[string]any{
						"nodes": []map[string]any{
							{
								"id": "i1", "identifier": "ENG-1", "title": "Fix bug",
								"description": "it is broken", "updatedAt": "2026-01-02T00:00:00Z",
								"url":      "https://linear.app/acme/issue/ENG-1",
								"state":    map[string]any{"name": "In Progress"},
								"assignee": map[string]any{"name": "Alice", "email": "alice@acme.com"},
								"creator":  map[string]any{"name": "Bob", "email": "bob@acme.com"},
								"project":  map[string]any{"id": "p1", "name": "Core"},
								"team":     map[string]any{"id": "t1", "name": "Platform"},
							},
						},
						"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
					},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
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
		Secrets: fakeSecrets{token: "lin_api_test"},
		Log:     hclog.NewNullLogger(),
	}

	p := New()
	summary, err := p.Sync(sc, 30, provider.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ItemsScanned)
	require.Equal(t, 1, summary.DocumentsProcessed)

	doc, err := s.GetByURI("linear://issue/ENG-1")
	require.NoError(t, err)
	require.Contains(t, doc.Body, "it is broken")

	cursor, err := provider.GetSyncCursor(sc, "linear")
	require.NoError(t, err)
	require.Equal(t, "2026-01-02T00:00:00Z", cursor)
}
