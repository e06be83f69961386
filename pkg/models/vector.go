package models

import "time"

// Vector maps a document id to its embedding. Dimensionality must match
// the active embedder; the store does not enforce a fixed dimension
// across rows, since the embedder can change between daemon versions.
type Vector struct {
	DocID     int64     `gorm:"primaryKey;column:doc_id" json:"docId"`
	Dim       int       `gorm:"not null" json:"dim"`
	Embedding []byte    `gorm:"type:blob;not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Vector) TableName() string {
	return "vectors"
}

// Cursor is the opaque sync-progress marker for a provider or
// sub-provider ("slack", "github", "google_workspace:drive", ...). A blank
// Value means "first sync, use default lookback".
type Cursor struct {
	Name      string    `gorm:"primaryKey;size:128" json:"name"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Cursor) TableName() string {
	return "sync_cursors"
}
