package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/minna.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDecay_HalfLifeRatio(t *testing.T) {
	e := NewEngine(nil, DefaultParams(), nil)
	fresh := e.decay(0)
	oneHalfLife := e.decay(e.params.DecayHalfLife)
	require.InDelta(t, 2.0, fresh/oneHalfLife, 1e-9)
}

func TestDecay_GhostBoundary(t *testing.T) {
	e := NewEngine(nil, DefaultParams(), nil)

	justBefore := e.decay(e.params.GhostCutoff - 24*time.Hour)
	require.Greater(t, justBefore, e.params.GhostWeight)

	atOrBeyond := e.decay(e.params.GhostCutoff + 24*time.Hour)
	require.Equal(t, e.params.GhostWeight, atOrBeyond)
}

func TestRecompute_SingleAssignedEdge(t *testing.T) {
	s := newTestStore(t)
	root := CanonicalID("user", "linear", "me")

	_, err := s.UpsertEdge(store.EdgeRef{
		From:       store.NodeRef{NodeType: "user", Provider: "linear", ExternalID: "me"},
		To:         store.NodeRef{NodeType: "issue", Provider: "linear", ExternalID: "ENG-1"},
		Relation:   "AssignedTo",
		Provider:   "linear",
		ObservedAt: time.Now().UTC(),
		Weight:     1.0,
	})
	require.NoError(t, err)

	engine := NewEngine(s, DefaultParams(), nil)
	require.NoError(t, engine.Recompute(root))

	issueID := CanonicalID("issue", "linear", "ENG-1")
	assignment, err := s.GetRingAssignment(issueID)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	require.Equal(t, string(RingOne), assignment.Ring)
	require.Equal(t, 1, assignment.HopDistance)
	require.InDelta(t, 1.0/1.001, assignment.EffectiveDistance, 1e-3)

	rootAssignment, err := s.GetRingAssignment(root)
	require.NoError(t, err)
	require.NotNil(t, rootAssignment)
	require.Equal(t, string(RingCore), rootAssignment.Ring)
}

func TestRecompute_GhostEdgePushesToBeyond(t *testing.T) {
	s := newTestStore(t)
	root := CanonicalID("user", "linear", "me")

	_, err := s.UpsertEdge(store.EdgeRef{
		From:       store.NodeRef{NodeType: "user", Provider: "linear", ExternalID: "me"},
		To:         store.NodeRef{NodeType: "issue", Provider: "linear", ExternalID: "ENG-1"},
		Relation:   "AssignedTo",
		Provider:   "linear",
		ObservedAt: time.Now().UTC().Add(-180 * 24 * time.Hour),
		Weight:     1.0,
	})
	require.NoError(t, err)

	engine := NewEngine(s, DefaultParams(), nil)
	require.NoError(t, engine.Recompute(root))

	issueID := CanonicalID("issue", "linear", "ENG-1")
	assignment, err := s.GetRingAssignment(issueID)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	require.Equal(t, string(RingBeyond), assignment.Ring)
}

func TestNameSimilarity_ExactAndJaccard(t *testing.T) {
	require.Equal(t, 1.0, NameSimilarity("Jane Doe", "jane doe"))
	require.Less(t, NameSimilarity("Jane Doe", "John Smith"), 0.5)
	require.Greater(t, NameSimilarity("Jon Stark", "John Stark"), FuzzyThreshold)
}
