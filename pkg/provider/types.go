// Package provider defines the contract every sync source implements
// and the shared helpers (backoff, cursors, since-window math) the
// framework gives each one. Individual providers live in
// pkg/provider/{slack,github,linear,google,notion,atlassian,localgit}.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/minnahq/minna/pkg/store"
)

// Mode selects how far back a sync should reach.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = ""
)

// SyncSummary is what a provider reports back after sync().
type SyncSummary struct {
	Provider           string    `json:"provider"`
	ItemsScanned       int       `json:"items_scanned"`
	DocumentsProcessed int       `json:"documents_processed"`
	APICalls           int       `json:"-"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Embedder is the subset of pkg/embedder.Embedder that the framework's
// index_document helper needs, kept here to avoid a provider->embedder
// import cycle (embedder never needs to know about providers).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SecretResolver resolves a named secret from the configured store
// (the JSON-file store from pkg/secretstore in production).
type SecretResolver interface {
	Get(ctx context.Context, key string) (string, error)
}

// SyncContext bundles everything a provider needs to do its work: the
// document/vector/graph store, an embedder, a pre-configured HTTP
// client, and secret access. Providers never reach into global state.
type SyncContext struct {
	Context context.Context
	Store   *store.Store
	Embed   Embedder
	HTTP    *http.Client
	Secrets SecretResolver
	Log     hclog.Logger
}

// SyncProvider is the contract every sync source implements. Enabling a
// new provider means implementing this and registering it — no other
// code changes.
type SyncProvider interface {
	Name() string
	DisplayName() string
	Sync(sc SyncContext, sinceDays int, mode Mode) (SyncSummary, error)
	Discover(sc SyncContext) (any, error)
}

// Document is what a provider hands to IndexDocument: enough to upsert
// into the store and compute an embedding from.
type Document struct {
	URI    string
	Source string
	Title  string
	Body   string
}

// Edge is what a provider hands to IndexEdges.
type Edge struct {
	From       store.NodeRef
	To         store.NodeRef
	Relation   string
	ObservedAt time.Time
	Weight     float64
}
