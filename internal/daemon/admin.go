package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/config"
	"github.com/minnahq/minna/pkg/secretstore"
)

// classifySecretErr tells "not configured" apart from a genuinely
// unreadable secret store, per verify_credentials' status vocabulary.
func classifySecretErr(err error) string {
	if errors.Is(err, secretstore.ErrNotConfigured) {
		return "not_configured"
	}
	return "error"
}

// adminHandler implements the admin-socket dispatch table. ping and
// get_status answer before the core is ready. verify_credentials is
// dispatched here too, but it reads the providers config from the core
// and answers "Engine still initializing…" until the core is set; every
// other method requires the core as well.
func (d *Daemon) adminHandler(ctx context.Context, req Request, emit func(event any)) Response {
	switch req.name() {
	case "ping":
		return Response{OK: true, Result: "pong"}
	case "get_status":
		return Response{OK: true, Result: d.status()}
	case "verify_credentials":
		return d.verifyCredentials(ctx)
	}

	core := d.Core()
	if core == nil {
		return Response{OK: false, Error: "Engine still initializing…"}
	}

	switch req.name() {
	case "sync_provider":
		return d.syncProvider(ctx, core, req, emit)
	case "discover":
		return d.discoverProvider(ctx, core, req)
	case "reset":
		return d.resetProvider(core, req)
	default:
		return Response{OK: false, Error: "unknown admin tool"}
	}
}

func (d *Daemon) verifyCredentials(ctx context.Context) Response {
	core := d.Core()
	if core == nil {
		return Response{OK: false, Error: "Engine still initializing…"}
	}
	result := make(map[string]credentialStatus, len(core.Config.Providers))
	for name, entry := range core.Config.Providers {
		result[name] = verifyCredential(ctx, core, entry)
	}
	return Response{OK: true, Result: result}
}

func verifyCredential(ctx context.Context, core *Core, entry config.Provider) credentialStatus {
	if !entry.Enabled {
		return credentialStatus{Configured: false, Status: "not_configured"}
	}

	switch entry.Auth.Type {
	case config.AuthNone:
		return credentialStatus{Configured: true, Status: "ready"}
	case config.AuthKeychainBasic:
		return checkSecrets(ctx, core, entry.Auth.Account+"_email", entry.Auth.Account+"_token")
	case config.AuthOAuth:
		return checkSecrets(ctx, core, entry.Auth.Account+"_refresh_token")
	default: // AuthKeychain
		return checkSecrets(ctx, core, entry.Auth.Account+"_token")
	}
}

// checkSecrets reports "ready" only if every key resolves to a
// non-empty value, expanding to "expired" if a sibling "{key}_expires_at"
// secret parses as RFC3339 and is in the past.
func checkSecrets(ctx context.Context, core *Core, keys ...string) credentialStatus {
	for _, key := range keys {
		v, err := core.Secrets.Get(ctx, key)
		if err != nil {
			return credentialStatus{Configured: false, Status: classifySecretErr(err)}
		}
		if v == "" {
			return credentialStatus{Configured: false, Status: "not_configured"}
		}
	}

	if expiresAt, err := core.Secrets.Get(ctx, keys[0]+"_expires_at"); err == nil && expiresAt != "" {
		if t, err := time.Parse(time.RFC3339, expiresAt); err == nil && t.Before(time.Now()) {
			return credentialStatus{Configured: true, Status: "expired"}
		}
	}
	return credentialStatus{Configured: true, Status: "ready"}
}

type syncParams struct {
	Provider  string  `json:"provider"`
	Mode      *string `json:"mode"`
	SinceDays *int    `json:"since_days"`
}

func (d *Daemon) syncProvider(ctx context.Context, core *Core, req Request, emit func(event any)) Response {
	var p syncParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}

	syncer, ok := core.Registry.Get(p.Provider)
	if !ok {
		return Response{OK: false, Error: fmt.Sprintf("provider %q is not enabled", p.Provider)}
	}

	mode := provider.ModeIncremental
	if p.Mode != nil && *p.Mode == string(provider.ModeFull) {
		mode = provider.ModeFull
	}
	sinceDays := 0
	if p.SinceDays != nil {
		sinceDays = *p.SinceDays
	}

	emitSync := func(status, message string, n *int) {
		d.emitProgress(p.Provider, status, message, n)
		emit(progressFrame{Provider: p.Provider, Status: status, Message: message, DocumentsProcessed: n})
	}
	emitSync("started", fmt.Sprintf("syncing %s", p.Provider), nil)

	sc := core.Registry.NewSyncContext(0)
	sc.Context = ctx

	summary, err := syncer.Sync(sc, sinceDays, mode)
	if err != nil {
		emitSync("failed", err.Error(), nil)
		return Response{OK: false, Error: err.Error()}
	}

	n := summary.DocumentsProcessed
	emitSync("completed", fmt.Sprintf("synced %s", p.Provider), &n)
	maybeRecomputeRing(core, d.log)

	return Response{OK: true, Result: map[string]any{
		"documents_processed": summary.DocumentsProcessed,
		"items_scanned":       summary.ItemsScanned,
		"updated_at":          summary.UpdatedAt,
	}}
}

type providerParams struct {
	Provider string `json:"provider"`
}

func (d *Daemon) discoverProvider(ctx context.Context, core *Core, req Request) Response {
	var p providerParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}
	syncer, ok := core.Registry.Get(p.Provider)
	if !ok {
		return Response{OK: false, Error: fmt.Sprintf("provider %q is not enabled", p.Provider)}
	}

	sc := core.Registry.NewSyncContext(0)
	sc.Context = ctx
	result, err := syncer.Discover(sc)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Result: result}
}

// providerSources maps a registered provider name to the document
// Source tag(s) it indexes under. Most providers index under their own
// name; Atlassian and Google Workspace fan out into several
// sub-sources, each with its own cursor key of "{provider}:{sub}".
func providerSources(name string) []string {
	switch name {
	case "atlassian":
		return []string{"jira", "confluence"}
	case "google_workspace":
		return []string{"google_drive", "google_calendar", "gmail"}
	default:
		return []string{name}
	}
}

func providerCursorKeys(name string) []string {
	switch name {
	case "atlassian":
		return []string{"atlassian:jira", "atlassian:confluence"}
	case "google_workspace":
		return []string{"google_workspace:drive", "google_workspace:calendar", "google_workspace:gmail"}
	default:
		return []string{name}
	}
}

// resetProvider drops a provider's cursor and documents and scrubs any
// vectors left orphaned, but per spec leaves graph edges alone.
func (d *Daemon) resetProvider(core *Core, req Request) Response {
	var p providerParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}
	if _, ok := core.Registry.Get(p.Provider); !ok {
		return Response{OK: false, Error: fmt.Sprintf("provider %q is not enabled", p.Provider)}
	}

	for _, source := range providerSources(p.Provider) {
		if err := core.Store.DeleteBySource(source); err != nil {
			return Response{OK: false, Error: fmt.Sprintf("deleting documents: %v", err)}
		}
	}
	for _, key := range providerCursorKeys(p.Provider) {
		if err := core.Store.SetCursor(key, ""); err != nil {
			return Response{OK: false, Error: fmt.Sprintf("clearing cursor: %v", err)}
		}
	}
	scrubbed, err := core.Store.ScrubOrphanVectors()
	if err != nil {
		return Response{OK: false, Error: fmt.Sprintf("scrubbing vectors: %v", err)}
	}

	return Response{OK: true, Result: map[string]any{"vectors_scrubbed": scrubbed}}
}
