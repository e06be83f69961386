// Command minnad is the daemon process: it wires every package under
// pkg/ into the two-socket dispatch loop and speaks the
// MINNA_RESULT/MINNA_PROGRESS stdout protocol a supervising UI
// consumes. Grounded on cmd/hermes-notify/main.go's staged-setup,
// signal-driven-shutdown main shape, generalized from one Kafka
// consumer to the daemon's socket listeners.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/minnahq/minna/internal/config"
	"github.com/minnahq/minna/internal/daemon"
	"github.com/minnahq/minna/internal/entitlement"
	"github.com/minnahq/minna/internal/version"
	"github.com/minnahq/minna/pkg/checkpoint"
	"github.com/minnahq/minna/pkg/embedder"
	"github.com/minnahq/minna/pkg/graph"
	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/atlassian"
	providercfg "github.com/minnahq/minna/pkg/provider/config"
	"github.com/minnahq/minna/pkg/provider/github"
	"github.com/minnahq/minna/pkg/provider/google"
	"github.com/minnahq/minna/pkg/provider/linear"
	"github.com/minnahq/minna/pkg/provider/events"
	"github.com/minnahq/minna/pkg/provider/localgit"
	"github.com/minnahq/minna/pkg/provider/notion"
	"github.com/minnahq/minna/pkg/provider/slack"
	"github.com/minnahq/minna/pkg/retrieval"
	"github.com/minnahq/minna/pkg/scheduler"
	"github.com/minnahq/minna/pkg/secretstore"
	"github.com/minnahq/minna/pkg/store"
)

func main() {
	paths, err := config.Resolve()
	if err != nil {
		fatal("resolving data directory: %v", err)
	}

	processCfg, err := config.LoadProcessConfig(paths.ProcessConfigPath)
	if err != nil {
		fatal("loading process config: %v", err)
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:  "minnad",
		Level: hclog.LevelFromString(processCfg.LogLevel),
	})

	if ent, err := entitlement.Read(paths.EntitlementPath); err != nil {
		log.Debug("entitlement file unreadable, continuing unentitled", "error", err)
	} else if ent.Plan != "" {
		log.Debug("entitlement loaded", "plan", ent.Plan, "seat", ent.Seat, "expired", ent.Expired)
	}

	if err := config.WritePID(paths.PIDFilePath, os.Getpid()); err != nil {
		log.Warn("writing pid file", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := daemon.New(log, version.Version, paths.AdminSocketPath, paths.MCPSocketPath)
	if err := d.Run(ctx, func(ctx context.Context) (*daemon.Core, error) {
		return buildCore(ctx, paths, processCfg, log)
	}); err != nil {
		fatal("daemon exited: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// buildCore performs every piece of setup the admin socket's
// ping/get_status must NOT wait on: opening the database, building the
// provider registry, and running a first identity-linking pass.
func buildCore(ctx context.Context, paths config.Paths, processCfg config.ProcessConfig, log hclog.Logger) (*daemon.Core, error) {
	secrets, err := secretstore.OpenFileStore(paths.LegacyAuthPath)
	if err != nil {
		return nil, fmt.Errorf("opening secret store: %w", err)
	}

	provCfg, err := providercfg.Load(paths.ProvidersTOMLPath)
	if err != nil {
		return nil, fmt.Errorf("loading providers.toml: %w", err)
	}

	s, err := store.Open(paths.DatabasePath, store.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	embed := embedder.New(ctx, embedderConfigFromEnv(log))

	registry := provider.NewRegistry(s, embed, secrets, log, provCfg)
	registerProviders(registry, provCfg)
	registry.Build()

	graphEngine := graph.NewEngine(s, graph.DefaultParams(), log)

	checkpoints, err := checkpoint.Open(paths.CheckpointsDir)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}

	instant := retrieval.NewInstantRecall(http.DefaultClient, secrets, log)
	retrievalEngine := retrieval.NewEngine(s, embed, instant, s.DocIDsByClusterLabel)

	sched := scheduler.New(registry,
		scheduler.WithLogger(log),
		scheduler.WithMaxConcurrent(processCfg.MaxConcurrentSyncs),
	)

	identity := graph.NewIdentity(s)
	if linked, err := identity.AutoLinkByEmail(); err != nil {
		log.Warn("identity auto-link pass failed", "error", err)
	} else if linked > 0 {
		log.Debug("auto-linked identities by email", "count", linked)
	}

	var rootNodeID string
	if id, ok, err := s.PrimaryIdentity(); err != nil {
		log.Warn("looking up primary identity", "error", err)
	} else if ok {
		rootNodeID = id
	}

	eventsPub, err := events.New(events.ConfigFromEnv(), log)
	if err != nil {
		return nil, fmt.Errorf("opening progress mirror publisher: %w", err)
	}

	return &daemon.Core{
		Store:       s,
		Registry:    registry,
		Scheduler:   sched,
		Graph:       graphEngine,
		Retrieval:   retrievalEngine,
		Checkpoints: checkpoints,
		Secrets:     secrets,
		Config:      provCfg,
		Instant:     instant,
		Events:      eventsPub,
		RootNodeID:  rootNodeID,
	}, nil
}

func registerProviders(registry *provider.Registry, cfg *providercfg.File) {
	registry.Register(slack.New())
	registry.Register(github.New())
	registry.Register(linear.New())
	registry.Register(notion.New())
	registry.Register(atlassian.New())
	registry.Register(google.New(googleOAuthConfig()))
	registry.Register(localgit.New(localRepoPaths(cfg)))
}

// googleOAuthConfig builds the Drive/Calendar/Gmail OAuth client
// config from environment variables; the client secret never lives in
// providers.toml since that file is not secret-store protected.
func googleOAuthConfig() *oauth2.Config {
	clientID := os.Getenv("MINNA_GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("MINNA_GOOGLE_CLIENT_SECRET")
	if clientID == "" && clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauthgoogle.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/drive.readonly",
			"https://www.googleapis.com/auth/calendar.readonly",
			"https://www.googleapis.com/auth/gmail.readonly",
		},
	}
}

// localRepoPaths reads a comma-separated repo_paths env var out of
// localgit's providers.toml entry, the one built-in provider whose
// configuration is a filesystem list rather than a credential.
func localRepoPaths(cfg *providercfg.File) []string {
	entry, ok := cfg.Providers["localgit"]
	if !ok {
		return nil
	}
	raw := entry.EnvVars["repo_paths"]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func embedderConfigFromEnv(log hclog.Logger) embedder.Config {
	backend := embedder.Backend(os.Getenv("MINNA_EMBEDDER_BACKEND"))
	if backend == "" {
		backend = embedder.BackendHash
	}
	return embedder.Config{
		Backend: backend,
		OpenAI: embedder.OpenAIEmbedderConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Logger: log,
		},
		Bedrock: embedder.BedrockEmbedderConfig{
			Region: os.Getenv("AWS_REGION"),
			Logger: log,
		},
		Ollama: embedder.OllamaEmbedderConfig{
			BaseURL: os.Getenv("MINNA_OLLAMA_BASE_URL"),
			Logger:  log,
		},
		Logger: log,
	}
}

