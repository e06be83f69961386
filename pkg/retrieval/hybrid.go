package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/minnahq/minna/pkg/models"
	"github.com/minnahq/minna/pkg/store"
)

const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
	snippetLen    = 240
)

// Item is one entry of a get_context response.
type Item struct {
	URI     string  `json:"uri"`
	Source  string  `json:"source"`
	Title   string  `json:"title,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
	Content string  `json:"content,omitempty"`
}

// Result is the full get_context response.
type Result struct {
	Mode  string `json:"mode"`
	Items []Item `json:"items"`
}

var packPattern = regexp.MustCompile(`pack='([^']*)'`)

// stripPack extracts an optional inline pack='name' token from query,
// returning the cleaned query and the pack name (empty if absent).
func stripPack(query string) (cleaned, pack string) {
	m := packPattern.FindStringSubmatch(query)
	if m == nil {
		return strings.TrimSpace(query), ""
	}
	cleaned = strings.TrimSpace(packPattern.ReplaceAllString(query, ""))
	return cleaned, m[1]
}

// Engine runs hybrid search and instant recall against a shared Store.
type Engine struct {
	store    *store.Store
	embed    Embedder
	instant  *InstantRecall
	clusters func(label string) ([]int64, error)
}

// Embedder is the subset of pkg/embedder.Embedder the retrieval engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEngine builds an Engine. clusterLookup resolves a pack label to the
// set of document ids it allows; pass nil if pack filtering is unused.
func NewEngine(s *store.Store, embed Embedder, instant *InstantRecall, clusterLookup func(label string) ([]int64, error)) *Engine {
	return &Engine{store: s, embed: embed, instant: instant, clusters: clusterLookup}
}

// GetContext implements spec §4.5: instant recall short-circuit, then
// hybrid fused search with ring boost.
func (e *Engine) GetContext(ctx context.Context, query string, pack string, limit int) (Result, error) {
	if limit <= 0 {
		limit = 10
	}

	if e.instant != nil {
		if item, ok, err := e.instant.Resolve(ctx, query); err != nil {
			return Result{}, fmt.Errorf("instant recall: %w", err)
		} else if ok {
			return Result{Mode: "instant_recall", Items: []Item{item}}, nil
		}
	}

	cleanedQuery, inlinePack := stripPack(query)
	if pack == "" {
		pack = inlinePack
	}

	var allow map[int64]bool
	if pack != "" && e.clusters != nil {
		ids, err := e.clusters(pack)
		if err != nil {
			return Result{}, fmt.Errorf("resolving pack %q: %w", pack, err)
		}
		allow = make(map[int64]bool, len(ids))
		for _, id := range ids {
			allow[id] = true
		}
	}

	fetchLimit := limit * 3

	var vecHits []store.VectorHit
	if e.embed != nil && cleanedQuery != "" {
		vec, err := e.embed.Embed(ctx, cleanedQuery)
		if err != nil {
			return Result{}, fmt.Errorf("embedding query: %w", err)
		}
		vecHits, err = e.store.SearchVectors(vec, fetchLimit)
		if err != nil {
			return Result{}, fmt.Errorf("vector search: %w", err)
		}
	}

	keyHits, err := e.store.SearchKeyword(cleanedQuery, fetchLimit)
	if err != nil {
		return Result{}, fmt.Errorf("keyword search: %w", err)
	}

	scores := make(map[int64]float64)
	for _, h := range vecHits {
		if allow != nil && !allow[h.DocID] {
			continue
		}
		scores[h.DocID] += vectorWeight * h.Score
	}
	for _, h := range keyHits {
		if allow != nil && !allow[h.DocID] {
			continue
		}
		scores[h.DocID] += keywordWeight * (1.0 / float64(h.Rank+1))
	}

	if len(scores) == 0 {
		return Result{Mode: "hybrid", Items: []Item{}}, nil
	}

	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	docs, err := e.store.FetchByIDs(ids)
	if err != nil {
		return Result{}, fmt.Errorf("hydrating candidates: %w", err)
	}
	byID := make(map[int64]models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	type scored struct {
		doc   models.Document
		score float64
	}
	var ranked []scored
	for id, base := range scores {
		doc, ok := byID[id]
		if !ok {
			continue
		}
		boost, err := boostFor(e.store, doc.Source, doc.URI)
		if err != nil {
			return Result{}, fmt.Errorf("ring boost for doc %d: %w", id, err)
		}
		ranked = append(ranked, scored{doc: doc, score: base * boost})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].doc.ID > ranked[j].doc.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	items := make([]Item, 0, len(ranked))
	for _, r := range ranked {
		title := ""
		if r.doc.Title != nil {
			title = *r.doc.Title
		}
		items = append(items, Item{
			URI:     r.doc.URI,
			Source:  r.doc.Source,
			Title:   title,
			Score:   r.score,
			Snippet: truncateRunes(r.doc.Body, snippetLen),
		})
	}
	return Result{Mode: "hybrid", Items: items}, nil
}

// truncateRunes cuts s to at most n runes, never splitting a multi-byte
// rune, matching spec's "on a character boundary" requirement.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
