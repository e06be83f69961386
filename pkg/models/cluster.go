package models

import "time"

// Cluster is a labelled group of documents produced by the union-find
// agglomeration pass, usable as a "pack" allow-filter on get_context.
type Cluster struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Label     string    `gorm:"not null;size:256;index" json:"label"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

// TableName returns the table name for GORM.
func (Cluster) TableName() string {
	return "clusters"
}

// ClusterMember is a single document's membership in a cluster.
type ClusterMember struct {
	ClusterID uint  `gorm:"primaryKey;column:cluster_id" json:"clusterId"`
	DocID     int64 `gorm:"primaryKey;column:doc_id" json:"docId"`
}

// TableName returns the table name for GORM.
func (ClusterMember) TableName() string {
	return "cluster_members"
}
