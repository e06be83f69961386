package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/minna.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertDocument_IdempotentByURI(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.UpsertDocument(&models.Document{URI: "gh://foo/1", Source: "github", Body: "first"})
	require.NoError(t, err)

	id2, err := s.UpsertDocument(&models.Document{URI: "gh://foo/1", Source: "github", Body: "second"})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	doc, err := s.GetByURI("gh://foo/1")
	require.NoError(t, err)
	require.Equal(t, "second", doc.Body)

	var count int64
	require.NoError(t, s.db.Model(&models.Document{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestScrubOrphanVectors(t *testing.T) {
	s := newTestStore(t)

	id, err := s.UpsertDocument(&models.Document{URI: "gh://foo/2", Source: "github", Body: "x"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertVector(id, []float32{1, 0, 0}))

	require.NoError(t, s.DeleteBySource("github"))

	removed, err := s.ScrubOrphanVectors()
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	vecs, err := s.ListVectors()
	require.NoError(t, err)
	require.Empty(t, vecs)
}

func TestUpsertEdge_IdempotentOnNaturalKey(t *testing.T) {
	s := newTestStore(t)

	from := NodeRef{NodeType: "user", Provider: "linear", ExternalID: "me"}
	to := NodeRef{NodeType: "issue", Provider: "linear", ExternalID: "ENG-1"}

	firstObserved := time.Now().UTC().Add(-time.Hour)
	_, err := s.UpsertEdge(EdgeRef{From: from, To: to, Relation: "AssignedTo", Provider: "linear", ObservedAt: firstObserved})
	require.NoError(t, err)

	secondObserved := time.Now().UTC()
	id, err := s.UpsertEdge(EdgeRef{From: from, To: to, Relation: "AssignedTo", Provider: "linear", ObservedAt: secondObserved})
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&models.GraphEdge{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var edge models.GraphEdge
	require.NoError(t, s.db.First(&edge, id).Error)
	require.WithinDuration(t, secondObserved, edge.ObservedAt, time.Second)
}

func TestSearchKeyword_ReflectsLatestBody(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertDocument(&models.Document{URI: "gh://foo/3", Source: "github", Body: "zebra stripes"})
	require.NoError(t, err)

	hits, err := s.SearchKeyword("zebra", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = s.UpsertDocument(&models.Document{URI: "gh://foo/3", Source: "github", Body: "giraffe spots"})
	require.NoError(t, err)

	hits, err = s.SearchKeyword("zebra", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = s.SearchKeyword("giraffe", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}
