package slack

import (
	"context"
	"encoding/json"
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

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/minna.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSlack_SyncIndexesTopLevelMessagesAndEdges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users.list":
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"members": []map[string]any{
					{"id": "U1", "name": "alice", "profile": map[string]any{"real_name": "Alice Example"}},
				},
			})
		case "/users.conversations":
			json.NewEncoder(w).Encode(map[string]any{
				"ok":       true,
				"channels": []map[string]any{{"id": "C1", "name": "general"}},
			})
		case "/conversations.history":
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "user": "U1", "text": "hello <@U1>", "ts": "1700000000.000100"},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	defer srv.Close()

	s := newTestStore(t)
	sc := provider.SyncContext{
		Context: context.Background(),
		Store:   s,
		Embed:   embedder.HashEmbedder{},
		HTTP:    srv.Client(),
		Secrets: fakeSecrets{token: "xoxb-test"},
		Log:     hclog.NewNullLogger(),
	}

	p := New()
	// Point the provider at our test server by overriding baseURL via
	// an httptest-backed transport; simplest is to swap the package
	// constant's effect through a local redirecting transport.
	sc.HTTP = &http.Client{Transport: rewriteTransport{target: srv.URL}}

	summary, err := p.Sync(sc, 0, provider.ModeFull)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DocumentsProcessed)

	doc, err := s.GetByURI("slack://C1/1700000000.000100")
	require.NoError(t, err)
	require.Contains(t, doc.Body, "@Alice Example")

	node, err := s.GetNode("channel", "slack", "C1")
	require.NoError(t, err)
	require.NotNil(t, node)
}

func TestSlack_ThreadReplyRendersThreeAuthorSegmentsAndMemberOfEdges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users.list":
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"members": []map[string]any{
					{"id": "U1", "name": "alice", "profile": map[string]any{"real_name": "Alice Example"}},
					{"id": "U2", "name": "bob", "profile": map[string]any{"real_name": "Bob Example"}},
					{"id": "U3", "name": "carol", "profile": map[string]any{"real_name": "Carol Example"}},
				},
			})
		case "/users.conversations":
			json.NewEncoder(w).Encode(map[string]any{
				"ok":       true,
				"channels": []map[string]any{{"id": "C1", "name": "general"}},
			})
		case "/conversations.history":
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "user": "U1", "text": "kicking off the thread", "ts": "1700000000.000100", "reply_count": 2},
				},
			})
		case "/conversations.replies":
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"type": "message", "user": "U1", "text": "kicking off the thread", "ts": "1700000000.000100"},
					{"type": "message", "user": "U2", "text": "first reply", "ts": "1700000001.000200", "thread_ts": "1700000000.000100"},
					{"type": "message", "user": "U3", "text": "second reply", "ts": "1700000002.000300", "thread_ts": "1700000000.000100"},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	defer srv.Close()

	s := newTestStore(t)
	sc := provider.SyncContext{
		Context: context.Background(),
		Store:   s,
		Embed:   embedder.HashEmbedder{},
		HTTP:    &http.Client{Transport: rewriteTransport{target: srv.URL}},
		Secrets: fakeSecrets{token: "xoxb-test"},
		Log:     hclog.NewNullLogger(),
	}

	p := New()
	summary, err := p.Sync(sc, 0, provider.ModeFull)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DocumentsProcessed)

	doc, err := s.GetByURI("slack://C1/1700000000.000100")
	require.NoError(t, err)

	// The header block (Channel/Author/Time/Link) is one \n-joined chunk
	// followed by \n\n before each **Name**: text segment, so splitting
	// on "\n\n" yields the header plus exactly one chunk per segment.
	segments := strings.Split(doc.Body, "\n\n")
	require.Len(t, segments, 4, "expected header + 3 **Author**: text segments, got body: %s", doc.Body)
	for _, seg := range segments[1:] {
		require.Regexp(t, `^\*\*[^*]+\*\*: .+$`, seg)
	}
	require.Contains(t, doc.Body, "**Alice Example**: kicking off the thread")
	require.Contains(t, doc.Body, "**Bob Example**: first reply")
	require.Contains(t, doc.Body, "**Carol Example**: second reply")

	msgCanonicalID := store.NodeRef{NodeType: "message", Provider: "slack", ExternalID: "1700000000.000100"}.CanonicalID()
	chanCanonicalID := store.NodeRef{NodeType: "channel", Provider: "slack", ExternalID: "C1"}.CanonicalID()

	edgesToChannel, err := s.EdgesTo(chanCanonicalID)
	require.NoError(t, err)

	postedIn, memberOf := 0, 0
	for _, e := range edgesToChannel {
		switch e.Relation {
		case "PostedIn":
			postedIn++
			require.Equal(t, msgCanonicalID, e.FromNode)
		case "MemberOf":
			memberOf++
		}
	}
	require.Equal(t, 1, postedIn)
	require.Equal(t, 3, memberOf, "the top-level author and both thread participants each get a MemberOf edge to the channel")
}

// rewriteTransport redirects every request to target's host, so
// slack.call's hardcoded baseURL still lands on the test server.
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
