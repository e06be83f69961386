package models

import "time"

// Document is a unit of content returned to the AI. URI is the unique
// natural key (a GitHub URL, a Slack permalink, a scheme://id pair);
// Body is Markdown with a metadata header the provider synthesises.
type Document struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	URI       string    `gorm:"uniqueIndex;not null;size:2048" json:"uri"`
	Source    string    `gorm:"not null;size:64;index" json:"source"`
	Title     *string   `gorm:"size:1024" json:"title,omitempty"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Document) TableName() string {
	return "documents"
}
