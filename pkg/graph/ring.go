package graph

import (
	"container/heap"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/minnahq/minna/pkg/models"
	"github.com/minnahq/minna/pkg/store"
)

// Ring is one of the four coarse proximity bands the engine assigns.
type Ring string

const (
	RingCore   Ring = "core"
	RingOne    Ring = "one"
	RingTwo    Ring = "two"
	RingBeyond Ring = "beyond"
)

// Params configures one recomputation run. Zero-value Params is invalid;
// use DefaultParams().
type Params struct {
	DecayHalfLife   time.Duration
	GhostCutoff     time.Duration
	GhostWeight     float64
	Ring1Threshold  float64
	Ring2Threshold  float64
	MaxHops         int
}

// DefaultParams returns the spec-mandated defaults.
func DefaultParams() Params {
	return Params{
		DecayHalfLife:  30 * 24 * time.Hour,
		GhostCutoff:    90 * 24 * time.Hour,
		GhostWeight:    0.1,
		Ring1Threshold: 2.0,
		Ring2Threshold: 4.0,
		MaxHops:        10,
	}
}

const costEpsilon = 0.001

// Engine runs the Ring Engine against a shared Store.
type Engine struct {
	store  *store.Store
	log    hclog.Logger
	params Params
}

// NewEngine constructs a Ring Engine with the given parameters. Pass
// DefaultParams() for the shipped defaults.
func NewEngine(s *store.Store, params Params, log hclog.Logger) *Engine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Engine{store: s, log: log, params: params}
}

// decay returns the edge weight multiplier for an edge observed d ago
// relative to now: 2^(-d/halfLife) while younger than the ghost cutoff,
// else the fixed ghost weight. d <= 0 yields 1.0.
func (e *Engine) decay(age time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	if age >= e.params.GhostCutoff {
		return e.params.GhostWeight
	}
	days := age.Hours() / 24
	halfLifeDays := e.params.DecayHalfLife.Hours() / 24
	return math.Exp2(-days / halfLifeDays)
}

// edgeCost converts a base weight and decay into traversal cost: lower
// cost means closer. Symmetric — direction does not affect cost.
func edgeCost(baseWeight, decay float64) float64 {
	return 1.0 / (baseWeight*decay + costEpsilon)
}

func ringForDistance(dist float64, p Params) Ring {
	switch {
	case dist == 0:
		return RingCore
	case dist <= p.Ring1Threshold:
		return RingOne
	case dist <= p.Ring2Threshold:
		return RingTwo
	default:
		return RingBeyond
	}
}

// adjacency is one traversal step: the neighbour node id and the cost
// of the edge used to reach it.
type adjacency struct {
	neighbor string
	cost     float64
}

// pqItem is a single entry in the shortest-path priority queue.
type pqItem struct {
	nodeID   string
	distance float64
	hops     int
	path     []string
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].distance != pq[j].distance {
		return pq[i].distance < pq[j].distance
	}
	return pq[i].nodeID < pq[j].nodeID
}
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Recompute runs single-source shortest path from root and overwrites
// every ring_assignments row in place. Unreachable nodes are left
// without a row; callers treat that as Beyond.
func (e *Engine) Recompute(root string) error {
	edges, err := e.store.AllEdges()
	if err != nil {
		return fmt.Errorf("loading edges for ring recomputation: %w", err)
	}

	now := time.Now().UTC()
	adj := make(map[string][]adjacency)
	addEdge := func(from, to string, cost float64) {
		adj[from] = append(adj[from], adjacency{neighbor: to, cost: cost})
	}
	for _, edge := range edges {
		age := now.Sub(edge.ObservedAt)
		cost := edgeCost(edge.Weight, e.decay(age))
		addEdge(edge.FromNode, edge.ToNode, cost)
		addEdge(edge.ToNode, edge.FromNode, cost)
	}

	if err := e.store.ClearRingAssignments(); err != nil {
		return fmt.Errorf("clearing stale ring assignments: %w", err)
	}

	visited := make(map[string]bool)
	pq := &priorityQueue{{nodeID: root, distance: 0, hops: 0, path: []string{root}}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if visited[item.nodeID] {
			continue
		}
		visited[item.nodeID] = true

		ring := ringForDistance(item.distance, e.params)
		pathJSON, err := marshalPath(item.path)
		if err != nil {
			return fmt.Errorf("encoding path for %s: %w", item.nodeID, err)
		}
		assignment := models.RingAssignment{
			NodeID:            item.nodeID,
			Ring:              string(ring),
			HopDistance:       item.hops,
			EffectiveDistance: item.distance,
			Path:              models.JSON(pathJSON),
			ComputedAt:        now,
		}
		if err := e.store.SetRingAssignment(assignment); err != nil {
			return fmt.Errorf("persisting ring assignment for %s: %w", item.nodeID, err)
		}

		if item.hops >= e.params.MaxHops {
			continue
		}
		for _, next := range adj[item.nodeID] {
			if visited[next.neighbor] {
				continue
			}
			path := make([]string, len(item.path), len(item.path)+1)
			copy(path, item.path)
			path = append(path, next.neighbor)
			heap.Push(pq, pqItem{
				nodeID:   next.neighbor,
				distance: item.distance + next.cost,
				hops:     item.hops + 1,
				path:     path,
			})
		}
	}

	e.log.Debug("ring recomputation complete", "root", root, "visited", len(visited))
	return nil
}

// ShouldRecompute implements the shipped default heuristic: trigger
// when the node count exceeds 2x the currently ring-assigned count.
func (e *Engine) ShouldRecompute() (bool, error) {
	nodeCount, err := e.store.NodeCount()
	if err != nil {
		return false, err
	}
	assignedCount, err := e.store.RingAssignedCount()
	if err != nil {
		return false, err
	}
	if assignedCount == 0 {
		return nodeCount > 0, nil
	}
	return nodeCount > 2*assignedCount, nil
}
