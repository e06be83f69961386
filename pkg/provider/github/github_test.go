package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
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

func TestGitHub_SyncIndexesOnlyPullRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/user/repos":
			if r.URL.Query().Get("page") == "2" {
				json.NewEncoder(w).Encode([]map[string]any{})
				return
			}
			json.NewEncoder(w).Encode([]map[string]any{{"full_name": "acme/widgets"}})
		case r.URL.Path == "/repos/acme/widgets/issues":
			if r.URL.Query().Get("page") == "2" {
				json.NewEncoder(w).Encode([]map[string]any{})
				return
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"number": 42, "title": "Add feature", "body": "does a thing",
					"html_url": "https://github.com/acme/widgets/pull/42",
					"user":     map[string]any{"login": "alice"},
					"pull_request": map[string]any{},
				},
				{
					"number": 43, "title": "Just an issue", "body": "not a pr",
					"html_url": "https://github.com/acme/widgets/issues/43",
					"user":     map[string]any{"login": "bob"},
				},
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
		Secrets: fakeSecrets{token: "ghp_test"},
		Log:     hclog.NewNullLogger(),
	}

	p := New()
	summary, err := p.Sync(sc, 30, provider.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DocumentsProcessed)
	require.Equal(t, 2, summary.ItemsScanned)

	doc, err := s.GetByURI("https://github.com/acme/widgets/pull/42")
	require.NoError(t, err)
	require.Contains(t, doc.Body, "does a thing")

	_, err = s.GetByURI("https://github.com/acme/widgets/issues/43")
	require.Error(t, err, "non-PR issues are not indexed")
}
