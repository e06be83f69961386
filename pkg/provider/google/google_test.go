package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/embedder"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

type fakeSecrets struct{}

func (fakeSecrets) Get(_ context.Context, _ string) (string, error) { return "refresh-token", nil }

func TestGoogleWorkspace_SyncIndexesDriveCalendarAndGmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/drive/v3/files":
			json.NewEncoder(w).Encode(map[string]any{
				"files": []map[string]any{
					{
						"id": "f1", "name": "Roadmap", "webViewLink": "https://drive.google.com/f1",
						"modifiedTime": "2026-01-01T00:00:00Z", "description": "quarterly plan",
						"owners": []map[string]any{{"emailAddress": "alice@acme.com", "displayName": "Alice"}},
					},
				},
			})
		case r.URL.Path == "/calendar/v3/calendars/primary/events":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id": "e1", "summary": "Planning sync", "description": "weekly sync",
						"htmlLink": "https://calendar.google.com/e1", "updated": "2026-01-01T00:00:00.000Z",
						"organizer": map[string]any{"email": "alice@acme.com", "displayName": "Alice"},
						"attendees": []map[string]any{{"email": "bob@acme.com", "displayName": "Bob"}},
					},
				},
			})
		case r.URL.Path == "/gmail/v1/users/me/messages":
			json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]any{{"id": "m1"}},
			})
		case r.URL.Path == "/gmail/v1/users/me/messages/m1":
			json.NewEncoder(w).Encode(map[string]any{
				"id": "m1", "snippet": "see you there", "internalDate": "1767225600000",
				"payload": map[string]any{
					"headers": []map[string]any{
						{"name": "Subject", "value": "Re: Planning"},
						{"name": "From", "value": "Alice <alice@acme.com>"},
						{"name": "To", "value": "Bob <bob@acme.com>"},
					},
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
		HTTP:    http.DefaultClient,
		Secrets: fakeSecrets{},
		Log:     hclog.NewNullLogger(),
	}

	p := New(nil)
	p.endpoint = srv.URL
	summary, err := p.Sync(sc, 30, provider.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, 3, summary.ItemsScanned)
	require.Equal(t, 3, summary.DocumentsProcessed)

	doc, err := s.GetByURI("https://drive.google.com/f1")
	require.NoError(t, err)
	require.Contains(t, doc.Body, "quarterly plan")

	_, err = s.GetByURI("https://calendar.google.com/e1")
	require.NoError(t, err)
}
