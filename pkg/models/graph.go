package models

import "time"

// GraphNode is an entity in the Gravity Well graph. Its canonical id
// ("{type}:{provider}:{externalId}") is derived from NodeType, Provider,
// and ExternalID, never stored redundantly — callers that need the
// string form use the constructors in pkg/graph.
type GraphNode struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeType    string  `gorm:"not null;size:32;uniqueIndex:idx_graph_nodes_natural_key" json:"nodeType"`
	Provider    string  `gorm:"not null;size:32;uniqueIndex:idx_graph_nodes_natural_key" json:"provider"`
	ExternalID  string  `gorm:"not null;size:512;uniqueIndex:idx_graph_nodes_natural_key" json:"externalId"`
	DisplayName *string `gorm:"size:512" json:"displayName,omitempty"`
	Metadata    JSON    `gorm:"type:text" json:"metadata,omitempty"`

	FirstSeenAt time.Time `gorm:"not null" json:"firstSeenAt"`
	LastSeenAt  time.Time `gorm:"not null;index" json:"lastSeenAt"`
}

// TableName returns the table name for GORM.
func (GraphNode) TableName() string {
	return "graph_nodes"
}

// GraphEdge is a directed relation between two graph nodes. Provider is
// the edge's origin, which may differ from either endpoint's own
// provider (e.g. a Linear-sourced MentionedIn edge between two GitHub
// nodes would not occur in practice, but the schema does not forbid it).
type GraphEdge struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FromNode   string    `gorm:"not null;size:600;uniqueIndex:idx_graph_edges_natural_key" json:"fromNode"`
	ToNode     string    `gorm:"not null;size:600;uniqueIndex:idx_graph_edges_natural_key" json:"toNode"`
	Relation   string    `gorm:"not null;size:32;uniqueIndex:idx_graph_edges_natural_key" json:"relation"`
	Provider   string    `gorm:"not null;size:32;uniqueIndex:idx_graph_edges_natural_key" json:"provider"`
	ObservedAt time.Time `gorm:"not null;index" json:"observedAt"`
	Weight     float64   `gorm:"not null;default:1.0" json:"weight"`
	Metadata   JSON      `gorm:"type:text" json:"metadata,omitempty"`
}

// TableName returns the table name for GORM.
func (GraphEdge) TableName() string {
	return "graph_edges"
}

// RingAssignment is the output of the Ring Engine for one reachable
// node. Unreachable nodes have no row and are treated as Beyond by
// callers. Overwritten in place on every recomputation; ComputedAt is
// the only staleness signal, there is no TTL.
type RingAssignment struct {
	NodeID            string    `gorm:"primaryKey;size:600;column:node_id" json:"nodeId"`
	Ring              string    `gorm:"not null;size:16" json:"ring"`
	HopDistance       int       `gorm:"not null" json:"hopDistance"`
	EffectiveDistance float64   `gorm:"not null" json:"effectiveDistance"`
	Path              JSON      `gorm:"type:text" json:"path"`
	ComputedAt        time.Time `gorm:"not null" json:"computedAt"`
}

// TableName returns the table name for GORM.
func (RingAssignment) TableName() string {
	return "ring_assignments"
}
