package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minnahq/minna/pkg/models"
)

// NodeRef is the natural key of a graph node, used wherever a caller
// only has the provider-facing identifiers and not a row id.
type NodeRef struct {
	NodeType    string
	Provider    string
	ExternalID  string
	DisplayName *string
	Metadata    string // raw JSON, empty for none
}

// CanonicalID returns "{type}:{provider}:{externalId}".
func (r NodeRef) CanonicalID() string {
	return fmt.Sprintf("%s:%s:%s", r.NodeType, r.Provider, r.ExternalID)
}

// UpsertNode creates or refreshes a node by its (provider, external_id)
// natural key. DisplayName is coalesced (kept if the new value is nil);
// last_seen_at is always bumped.
func (s *Store) UpsertNode(ref NodeRef) (string, error) {
	now := time.Now().UTC()

	var existing models.GraphNode
	err := s.db.Where("provider = ? AND external_id = ?", ref.Provider, ref.ExternalID).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		node := models.GraphNode{
			NodeType:    ref.NodeType,
			Provider:    ref.Provider,
			ExternalID:  ref.ExternalID,
			DisplayName: ref.DisplayName,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		if ref.Metadata != "" {
			node.Metadata = models.JSON(ref.Metadata)
		}
		if err := s.db.Create(&node).Error; err != nil {
			return "", fmt.Errorf("creating node %s: %w", ref.CanonicalID(), err)
		}
		return ref.CanonicalID(), nil

	case err != nil:
		return "", fmt.Errorf("looking up node %s: %w", ref.CanonicalID(), err)
	}

	updates := map[string]interface{}{"last_seen_at": now}
	if existing.DisplayName == nil && ref.DisplayName != nil {
		updates["display_name"] = *ref.DisplayName
	}
	if ref.Metadata != "" {
		updates["metadata"] = ref.Metadata
	}
	if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("updating node %s: %w", ref.CanonicalID(), err)
	}
	return ref.CanonicalID(), nil
}

// GetNode looks up a node by canonical id (type:provider:externalId).
func (s *Store) GetNode(nodeType, provider, externalID string) (*models.GraphNode, error) {
	var node models.GraphNode
	err := s.db.Where("node_type = ? AND provider = ? AND external_id = ?", nodeType, provider, externalID).
		First(&node).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// EdgeRef describes a directed edge to be persisted.
type EdgeRef struct {
	From       NodeRef
	To         NodeRef
	Relation   string
	Provider   string
	ObservedAt time.Time
	Weight     float64
	Metadata   string
}

// UpsertEdge creates both endpoints if missing, then upserts the edge
// itself. Re-upsert on an existing (from, to, relation, provider)
// refreshes observed_at without creating a second row.
func (s *Store) UpsertEdge(e EdgeRef) (uint, error) {
	fromID, err := s.UpsertNode(e.From)
	if err != nil {
		return 0, fmt.Errorf("upserting edge endpoint %s: %w", e.From.CanonicalID(), err)
	}
	toID, err := s.UpsertNode(e.To)
	if err != nil {
		return 0, fmt.Errorf("upserting edge endpoint %s: %w", e.To.CanonicalID(), err)
	}

	weight := e.Weight
	if weight == 0 {
		weight = 1.0
	}
	observedAt := e.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	edge := models.GraphEdge{
		FromNode:   fromID,
		ToNode:     toID,
		Relation:   e.Relation,
		Provider:   e.Provider,
		ObservedAt: observedAt,
		Weight:     weight,
	}
	if e.Metadata != "" {
		edge.Metadata = models.JSON(e.Metadata)
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_node"}, {Name: "to_node"}, {Name: "relation"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"observed_at", "weight"}),
	}).Create(&edge).Error
	if err != nil {
		return 0, fmt.Errorf("upserting edge %s-%s->%s: %w", fromID, e.Relation, toID, err)
	}
	return edge.ID, nil
}

// EdgesFrom returns every edge originating at nodeID.
func (s *Store) EdgesFrom(nodeID string) ([]models.GraphEdge, error) {
	var edges []models.GraphEdge
	if err := s.db.Where("from_node = ?", nodeID).Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("reading outgoing edges for %s: %w", nodeID, err)
	}
	return edges, nil
}

// EdgesTo returns every edge terminating at nodeID.
func (s *Store) EdgesTo(nodeID string) ([]models.GraphEdge, error) {
	var edges []models.GraphEdge
	if err := s.db.Where("to_node = ?", nodeID).Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("reading incoming edges for %s: %w", nodeID, err)
	}
	return edges, nil
}

// AllEdges returns every graph edge, used by the Ring Engine to build
// its traversal adjacency in one pass rather than one query per node.
func (s *Store) AllEdges() ([]models.GraphEdge, error) {
	var edges []models.GraphEdge
	if err := s.db.Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	return edges, nil
}

// NodeCount returns the total number of graph nodes.
func (s *Store) NodeCount() (int64, error) {
	var n int64
	err := s.db.Model(&models.GraphNode{}).Count(&n).Error
	return n, err
}

// AllNodes returns every graph node row, used by identity linking
// and ring recomputation to enumerate the full node set.
func (s *Store) AllNodes() ([]models.GraphNode, error) {
	var nodes []models.GraphNode
	if err := s.db.Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	return nodes, nil
}

// SetRingAssignment overwrites the ring row for a node id in place.
func (s *Store) SetRingAssignment(a models.RingAssignment) error {
	if a.ComputedAt.IsZero() {
		a.ComputedAt = time.Now().UTC()
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "node_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ring", "hop_distance", "effective_distance", "path", "computed_at"}),
	}).Create(&a).Error
}

// GetRingAssignment returns the ring row for a node, or nil if
// unreachable from the current root (callers treat that as Beyond).
func (s *Store) GetRingAssignment(nodeID string) (*models.RingAssignment, error) {
	var a models.RingAssignment
	err := s.db.Where("node_id = ?", nodeID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ring assignment for %s: %w", nodeID, err)
	}
	return &a, nil
}

// ClearRingAssignments removes every existing ring row before a fresh
// recomputation; the engine has no incremental update path.
func (s *Store) ClearRingAssignments() error {
	return s.db.Exec("DELETE FROM ring_assignments").Error
}

// RingAssignedCount returns how many nodes currently carry a ring
// assignment, used by the scheduler's recomputation-trigger heuristic.
func (s *Store) RingAssignedCount() (int64, error) {
	var n int64
	err := s.db.Model(&models.RingAssignment{}).Count(&n).Error
	return n, err
}
