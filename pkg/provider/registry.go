package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/minnahq/minna/pkg/provider/config"
	"github.com/minnahq/minna/pkg/scheduler"
	"github.com/minnahq/minna/pkg/store"
)

// Registry owns the name -> SyncProvider lookup, built at boot from
// providers.toml intersected with the compiled-in set registered via
// Register. Enabling a new provider requires implementing SyncProvider
// and calling Register in an init() or explicit wiring step; no other
// code changes.
type Registry struct {
	store   *store.Store
	embed   Embedder
	secrets SecretResolver
	log     hclog.Logger
	cfg     *config.File

	compiled map[string]SyncProvider
	enabled  map[string]SyncProvider
}

// NewRegistry constructs a registry over the compiled-in providers,
// applying cfg (the parsed providers.toml) to decide which are enabled.
func NewRegistry(s *store.Store, embed Embedder, secrets SecretResolver, log hclog.Logger, cfg *config.File) *Registry {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	r := &Registry{
		store: s, embed: embed, secrets: secrets, log: log, cfg: cfg,
		compiled: make(map[string]SyncProvider),
		enabled:  make(map[string]SyncProvider),
	}
	return r
}

// Register adds a compiled-in provider implementation. Call once per
// provider at startup before Build.
func (r *Registry) Register(p SyncProvider) {
	r.compiled[p.Name()] = p
}

// Build intersects the compiled-in set with providers.toml: a provider
// only becomes enabled if it's both registered in code and marked
// enabled = true in config (or has no config entry at all, which
// defaults to disabled — config.Defaults() ships entries for every
// built-in provider so this only bites custom providers).
func (r *Registry) Build() {
	for name, p := range r.compiled {
		entry, ok := r.cfg.Providers[name]
		if !ok || !entry.Enabled {
			r.log.Debug("provider disabled", "provider", name)
			continue
		}
		r.enabled[name] = p
	}
}

// Get returns the enabled provider by name, or false if it isn't
// registered or isn't enabled.
func (r *Registry) Get(name string) (SyncProvider, bool) {
	p, ok := r.enabled[name]
	return p, ok
}

// Names returns every enabled provider name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.enabled))
	for name := range r.enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSyncContext builds a SyncContext from the registry's shared
// pieces, with an HTTP client using timeout (30s when zero). It resolves
// no secrets: providers call sc.Secrets.Get themselves with their own
// key naming (e.g. "github_token").
func (r *Registry) NewSyncContext(timeout time.Duration) SyncContext {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return SyncContext{
		Store:   r.store,
		Embed:   r.embed,
		Secrets: r.secrets,
		Log:     r.log,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// RunSync implements scheduler.Runner, letting pkg/scheduler dispatch
// syncs without pkg/scheduler importing this package.
func (r *Registry) RunSync(ctx context.Context, providerName string, depth scheduler.SyncDepth, sinceDays int) scheduler.SyncResult {
	p, ok := r.enabled[providerName]
	if !ok {
		return scheduler.SyncResult{Err: fmt.Errorf("provider %q is not enabled", providerName)}
	}
	sc := r.NewSyncContext(0)
	sc.Context = ctx

	mode := ModeIncremental
	if depth == scheduler.DepthFull {
		mode = ModeFull
	}
	summary, err := p.Sync(sc, sinceDays, mode)
	return scheduler.SyncResult{
		DocumentsProcessed: summary.DocumentsProcessed,
		APICalls:           summary.APICalls,
		Err:                err,
	}
}
