package retrieval

import (
	"github.com/minnahq/minna/pkg/graph"
	"github.com/minnahq/minna/pkg/store"
)

// ringMultiplier maps a ring band to its score multiplier per the
// fusion formula: Core x1.5, Ring 1 x1.3, Ring 2 x1.1, Beyond x1.0.
func ringMultiplier(ring graph.Ring) float64 {
	switch ring {
	case graph.RingCore:
		return 1.5
	case graph.RingOne:
		return 1.3
	case graph.RingTwo:
		return 1.1
	default:
		return 1.0
	}
}

// boostFor reconstructs candidate node ids from (source, uri), looks up
// the best (smallest-ring) assignment among them, and returns the
// corresponding multiplier. Unmatched or unassigned documents get 1.0.
func boostFor(s *store.Store, source, uri string) (float64, error) {
	best := graph.RingBeyond
	found := false

	for _, nodeID := range candidateNodeIDs(uri) {
		assignment, err := s.GetRingAssignment(nodeID)
		if err != nil {
			return 0, err
		}
		if assignment == nil {
			continue
		}
		ring := graph.Ring(assignment.Ring)
		if !found || ringRank(ring) < ringRank(best) {
			best = ring
			found = true
		}
	}

	if !found {
		return 1.0, nil
	}
	return ringMultiplier(best), nil
}

func ringRank(r graph.Ring) int {
	switch r {
	case graph.RingCore:
		return 0
	case graph.RingOne:
		return 1
	case graph.RingTwo:
		return 2
	default:
		return 3
	}
}
