package localgit

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/embedder"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

type fakeSecrets struct{}

func (fakeSecrets) Get(_ context.Context, _ string) (string, error) { return "", nil }

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Alice", "GIT_AUTHOR_EMAIL=alice@acme.com",
			"GIT_COMMITTER_NAME=Alice", "GIT_COMMITTER_EMAIL=alice@acme.com",
		)
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))
	run("add", "README.md")
	run("commit", "-q", "-m", "initial commit")
	return dir
}

func TestLocalGit_SyncIndexesCommitsAndEdges(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	repoPath := initTestRepo(t)

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

	p := New([]string{repoPath})
	summary, err := p.Sync(sc, 365, provider.ModeFull)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DocumentsProcessed)

	node, err := s.GetNode("user", "localgit", "Alice")
	require.NoError(t, err)
	require.NotNil(t, node)
}
