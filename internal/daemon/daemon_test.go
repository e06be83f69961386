package daemon_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/internal/daemon"
	"github.com/minnahq/minna/pkg/checkpoint"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/config"
	"github.com/minnahq/minna/pkg/retrieval"
	"github.com/minnahq/minna/pkg/scheduler"
	"github.com/minnahq/minna/pkg/secretstore"
	"github.com/minnahq/minna/pkg/store"
)

type stubProvider struct{ docsProcessed int }

func (s *stubProvider) Name() string        { return "stub" }
func (s *stubProvider) DisplayName() string { return "Stub" }
func (s *stubProvider) Sync(provider.SyncContext, int, provider.Mode) (provider.SyncSummary, error) {
	return provider.SyncSummary{Provider: "stub", DocumentsProcessed: s.docsProcessed, ItemsScanned: s.docsProcessed}, nil
}
func (s *stubProvider) Discover(provider.SyncContext) (any, error) {
	return map[string]string{"account": "stub-user"}, nil
}

// newTestCore builds a real Core rooted at dir. It takes no *testing.T
// so it is safe to call from the background goroutine Daemon.Run drives
// initCore on.
func newTestCore(dir string) (*daemon.Core, error) {
	s, err := store.Open(filepath.Join(dir, "minna.db"))
	if err != nil {
		return nil, err
	}

	secrets, err := secretstore.OpenFileStore(filepath.Join(dir, "auth.json"))
	if err != nil {
		return nil, err
	}

	cfg := config.Defaults()
	cfg.Providers["stub"] = config.Provider{Enabled: true, DisplayName: "Stub", Auth: config.Auth{Type: config.AuthNone}}

	reg := provider.NewRegistry(s, nil, secrets, nil, cfg)
	reg.Register(&stubProvider{docsProcessed: 3})
	reg.Build()

	cp, err := checkpoint.Open(filepath.Join(dir, "checkpoints"))
	if err != nil {
		return nil, err
	}

	return &daemon.Core{
		Store: s, Registry: reg, Scheduler: scheduler.New(reg),
		Checkpoints: cp, Secrets: secrets, Config: cfg,
		Retrieval: retrieval.NewEngine(s, nil, nil, nil),
	}, nil
}

// startDaemon launches a Daemon whose core becomes ready as soon as
// newTestCore completes (no artificial delay), and returns the socket
// paths once the admin socket is accepting.
func startDaemon(t *testing.T) (adminSock, mcpSock string) {
	t.Helper()
	dir := t.TempDir()
	adminSock = filepath.Join(dir, "admin.sock")
	mcpSock = filepath.Join(dir, "mcp.sock")
	coreDir := t.TempDir()

	d := daemon.New(nil, "test-version", adminSock, mcpSock)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = d.Run(ctx, func(context.Context) (*daemon.Core, error) {
			return newTestCore(coreDir)
		})
	}()

	waitForSocket(t, adminSock)
	return adminSock, mcpSock
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never became available", path)
}

func call(t *testing.T, sockPath string, id, method string, params any) daemon.Response {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	raw, err := json.Marshal(params)
	require.NoError(t, err)
	req := fmt.Sprintf(`{"id":%q,"method":%q,"params":%s}`, id, method, raw)
	_, err = conn.Write([]byte(req + "\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	var resp daemon.Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	return resp
}

func TestDaemon_PingAndGetStatusWorkBeforeReady(t *testing.T) {
	dir := t.TempDir()
	adminSock := filepath.Join(dir, "admin.sock")
	mcpSock := filepath.Join(dir, "mcp.sock")
	coreDir := t.TempDir()

	d := daemon.New(nil, "v0.1.0", adminSock, mcpSock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	block := make(chan struct{})
	go func() {
		_ = d.Run(ctx, func(context.Context) (*daemon.Core, error) {
			<-block
			return newTestCore(coreDir)
		})
	}()
	waitForSocket(t, adminSock)

	resp := call(t, adminSock, "1", "ping", nil)
	require.True(t, resp.OK)

	resp = call(t, adminSock, "2", "get_status", nil)
	require.True(t, resp.OK)
	status := resp.Result.(map[string]any)
	require.Equal(t, false, status["ready"])
	require.Equal(t, true, status["running"])

	resp = call(t, adminSock, "3", "discover", map[string]string{"provider": "stub"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "initializing")

	close(block)
}

func TestDaemon_SyncDiscoverReset(t *testing.T) {
	adminSock, _ := startDaemon(t)

	require.Eventually(t, func() bool {
		resp := call(t, adminSock, "r", "get_status", nil)
		status := resp.Result.(map[string]any)
		return status["ready"] == true
	}, 5*time.Second, 10*time.Millisecond)

	resp := call(t, adminSock, "4", "sync_provider", map[string]any{"provider": "stub"})
	require.True(t, resp.OK)

	resp = call(t, adminSock, "5", "discover", map[string]string{"provider": "stub"})
	require.True(t, resp.OK)

	resp = call(t, adminSock, "6", "reset", map[string]string{"provider": "stub"})
	require.True(t, resp.OK)

	resp = call(t, adminSock, "7", "sync_provider", map[string]any{"provider": "made_up"})
	require.False(t, resp.OK)
}

func TestDaemon_UnknownAdminMethod(t *testing.T) {
	adminSock, _ := startDaemon(t)
	require.Eventually(t, func() bool {
		resp := call(t, adminSock, "r", "get_status", nil)
		status := resp.Result.(map[string]any)
		return status["ready"] == true
	}, 5*time.Second, 10*time.Millisecond)

	resp := call(t, adminSock, "8", "nonsense", nil)
	require.False(t, resp.OK)
	require.Equal(t, "unknown admin tool", resp.Error)
}

func TestDaemon_McpCheckpointRoundTrip(t *testing.T) {
	_, mcpSock := startDaemon(t)
	waitForSocket(t, mcpSock)

	saveResp := call(t, mcpSock, "9", "save_state", map[string]any{
		"title": "integration test session", "summary": "covering daemon sockets",
		"task": "finish mcp handler", "next_steps": "ship it", "trigger": "manual",
	})
	require.True(t, saveResp.OK)

	loadResp := call(t, mcpSock, "10", "load_state", map[string]any{"title": "integration test session"})
	require.True(t, loadResp.OK)
}
