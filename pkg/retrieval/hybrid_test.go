package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/graph"
	"github.com/minnahq/minna/pkg/models"
	"github.com/minnahq/minna/pkg/store"
)

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return s.vec, nil }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/minna.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetContext_RingBoostOutranksRawScore(t *testing.T) {
	s := newTestStore(t)

	lowID, err := s.UpsertDocument(&models.Document{URI: "https://github.com/acme/widgets/pull/1", Source: "github", Body: "fix login bug"})
	require.NoError(t, err)
	highID, err := s.UpsertDocument(&models.Document{URI: "https://github.com/acme/widgets/pull/2", Source: "github", Body: "fix login bug too"})
	require.NoError(t, err)

	require.NoError(t, s.UpsertVector(lowID, []float32{1, 0, 0}))
	require.NoError(t, s.UpsertVector(highID, []float32{1, 0, 0}))

	require.NoError(t, s.SetRingAssignment(models.RingAssignment{
		NodeID: graph.CanonicalID("pr", "github", "2"), Ring: string(graph.RingCore),
		HopDistance: 1, EffectiveDistance: 0.5, ComputedAt: time.Now(),
	}))

	engine := NewEngine(s, stubEmbedder{vec: []float32{1, 0, 0}}, nil, nil)
	result, err := engine.GetContext(context.Background(), "login bug", "", 5)
	require.NoError(t, err)
	require.Equal(t, "hybrid", result.Mode)
	require.NotEmpty(t, result.Items)
	require.Equal(t, "https://github.com/acme/widgets/pull/2", result.Items[0].URI)
}

func TestGetContext_PackFilterExcludesOutsideDocs(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.UpsertDocument(&models.Document{URI: "https://a", Source: "github", Body: "roadmap notes"})
	require.NoError(t, err)
	id2, err := s.UpsertDocument(&models.Document{URI: "https://b", Source: "github", Body: "roadmap notes too"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertVector(id1, []float32{1, 0}))
	require.NoError(t, s.UpsertVector(id2, []float32{1, 0}))

	lookup := func(label string) ([]int64, error) {
		if label == "mine" {
			return []int64{id1}, nil
		}
		return nil, nil
	}

	engine := NewEngine(s, stubEmbedder{vec: []float32{1, 0}}, nil, lookup)
	result, err := engine.GetContext(context.Background(), "roadmap pack='mine'", "", 5)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, "https://a", result.Items[0].URI)
}

func TestStripPack(t *testing.T) {
	cleaned, pack := stripPack("roadmap pack='mine'")
	require.Equal(t, "roadmap", cleaned)
	require.Equal(t, "mine", pack)

	cleaned, pack = stripPack("roadmap")
	require.Equal(t, "roadmap", cleaned)
	require.Equal(t, "", pack)
}

func TestTruncateRunes_StopsOnCharBoundary(t *testing.T) {
	s := "hello ééé world"
	out := truncateRunes(s, 7)
	require.Equal(t, []rune("hello é"), []rune(out))
}
