package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/models"
)

func TestDocIDsByClusterLabel(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.UpsertDocument(&models.Document{URI: "gh://a", Source: "github", Body: "x"})
	require.NoError(t, err)
	id2, err := s.UpsertDocument(&models.Document{URI: "gh://b", Source: "github", Body: "x"})
	require.NoError(t, err)
	id3, err := s.UpsertDocument(&models.Document{URI: "gh://c", Source: "github", Body: "x"})
	require.NoError(t, err)

	require.NoError(t, s.UpsertVector(id1, []float32{1, 0, 0}))
	require.NoError(t, s.UpsertVector(id2, []float32{1, 0, 0}))
	require.NoError(t, s.UpsertVector(id3, []float32{0, 1, 0}))

	clusters, err := s.Cluster(0.99, 2)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	ids, err := s.DocIDsByClusterLabel(clusters[0].Label)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{id1, id2}, ids)
}

func TestDocIDsByClusterLabel_UnknownLabelReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.DocIDsByClusterLabel("does-not-exist")
	require.NoError(t, err)
	require.Empty(t, ids)
}
