package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/minnahq/minna/pkg/checkpoint"
	"github.com/minnahq/minna/pkg/graph"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/config"
	"github.com/minnahq/minna/pkg/provider/events"
	"github.com/minnahq/minna/pkg/retrieval"
	"github.com/minnahq/minna/pkg/scheduler"
	"github.com/minnahq/minna/pkg/secretstore"
	"github.com/minnahq/minna/pkg/store"
)

// Core is everything the daemon needs once initialization completes:
// the document/vector/graph store, the provider registry, the
// scheduler, the ring engine, the retrieval engine, the checkpoint
// store, and secret access. It is assembled by the caller (normally
// cmd/minnad) and handed to Daemon.Run once ready.
type Core struct {
	Store       *store.Store
	Registry    *provider.Registry
	Scheduler   *scheduler.Scheduler
	Graph       *graph.Engine
	Retrieval   *retrieval.Engine
	Checkpoints *checkpoint.Store
	Secrets     secretstore.Store
	Config      *config.File
	Instant     *retrieval.InstantRecall

	// Events mirrors MINNA_PROGRESS frames onto an optional Kafka topic
	// for multi-process supervisors. Never nil; a disabled Publisher
	// (no brokers configured) is a safe no-op.
	Events *events.Publisher

	// RootNodeID is the user's canonical identity node, the root every
	// ring recomputation traverses from. Empty means ring recomputation
	// is skipped (no identity has been linked yet).
	RootNodeID string
}

// maybeRecomputeRing implements the scheduler-triggered half of the
// ring engine's recomputation policy: fires when the graph has grown
// past 2x its last ring-assigned node count. Runs in the background so
// it never delays a sync_provider response.
func maybeRecomputeRing(core *Core, log interface{ Warn(string, ...any) }) {
	if core == nil || core.Graph == nil || core.RootNodeID == "" {
		return
	}
	go func() {
		nodeCount, err := core.Store.NodeCount()
		if err != nil {
			return
		}
		assigned, err := core.Store.RingAssignedCount()
		if err != nil {
			return
		}
		if nodeCount <= 2*assigned {
			return
		}
		if err := core.Graph.Recompute(core.RootNodeID); err != nil {
			log.Warn("ring recompute failed", "error", err)
		}
	}()
}

// credentialStatus is the fixed classification verify_credentials
// reports for each provider.
type credentialStatus struct {
	Configured bool   `json:"configured"`
	Status     string `json:"status"`
}

// Daemon owns the two Unix-socket listeners and the deferred-ready
// Core. The only global mutable state is core (behind mu) and the
// progress bus, matching the concurrency model's "no global mutable
// state except..." rule.
type Daemon struct {
	mu   sync.RWMutex
	core *Core

	log     hclog.Logger
	version string
	pid     int

	adminSockPath string
	mcpSockPath   string

	bus *ProgressBus
}

// New constructs a Daemon. adminSockPath and mcpSockPath are the Unix
// socket paths to listen on; both are removed first if stale (a prior
// process that didn't clean up).
func New(log hclog.Logger, version, adminSockPath, mcpSockPath string) *Daemon {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Daemon{
		log:           log,
		version:       version,
		pid:           os.Getpid(),
		adminSockPath: adminSockPath,
		mcpSockPath:   mcpSockPath,
		bus:           NewProgressBus(),
	}
}

// Core returns the current core, or nil if initialization hasn't
// finished yet.
func (d *Daemon) Core() *Core {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.core
}

func (d *Daemon) setCore(c *Core) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.core = c
}

// Run starts serving the admin socket in the background, then calls
// initCore (admin requests are answered while it runs), and once it
// succeeds starts the MCP socket, the
// scheduler loop, and emits the MINNA_RESULT readiness line on
// stdout. It blocks until ctx is cancelled or initCore fails fatally.
func (d *Daemon) Run(ctx context.Context, initCore func(context.Context) (*Core, error)) error {
	adminListener, err := listenUnix(d.adminSockPath)
	if err != nil {
		return fmt.Errorf("listening on admin socket %s: %w", d.adminSockPath, err)
	}
	go serveListener(ctx, adminListener, d.adminHandler)
	d.log.Info("admin socket listening", "path", d.adminSockPath)

	core, err := initCore(ctx)
	if err != nil {
		return fmt.Errorf("initializing core: %w", err)
	}
	d.setCore(core)

	mcpListener, err := listenUnix(d.mcpSockPath)
	if err != nil {
		return fmt.Errorf("listening on MCP socket %s: %w", d.mcpSockPath, err)
	}
	go serveListener(ctx, mcpListener, d.mcpHandler)
	d.log.Info("mcp socket listening", "path", d.mcpSockPath)

	emitResult("init", "ready", nil)

	if core.Scheduler != nil {
		go func() {
			_ = core.Scheduler.RunLoop(ctx, schedulerTickInterval, func() []string {
				return core.Registry.Names()
			})
		}()
	}

	<-ctx.Done()
	d.log.Info("shutting down")
	return nil
}

// listenUnix removes any stale socket file at path before listening,
// matching the teacher's defensive restart handling for long-lived
// listeners.
func listenUnix(path string) (net.Listener, error) {
	if path == "" {
		return nil, fmt.Errorf("empty socket path")
	}
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

type statusResult struct {
	Running bool   `json:"running"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

func (d *Daemon) status() statusResult {
	return statusResult{Running: true, Ready: d.Core() != nil, Version: d.version, PID: d.pid}
}
