package models

// UserIdentity is a canonical, cross-provider identity. Multiple
// UserIdentityLink rows pointing at the same CanonicalID is the
// definition of "linked".
type UserIdentity struct {
	CanonicalID string  `gorm:"primaryKey;size:600;column:canonical_id" json:"canonicalId"`
	Email       *string `gorm:"size:320;index" json:"email,omitempty"`
	DisplayName *string `gorm:"size:512" json:"displayName,omitempty"`
}

// TableName returns the table name for GORM.
func (UserIdentity) TableName() string {
	return "user_identities"
}

// UserIdentityLink maps a single provider account onto a canonical
// identity.
type UserIdentityLink struct {
	Provider       string `gorm:"primaryKey;size:32" json:"provider"`
	ProviderUserID string `gorm:"primaryKey;size:512;column:provider_user_id" json:"providerUserId"`
	CanonicalID    string `gorm:"not null;size:600;index;column:canonical_id" json:"canonicalId"`
}

// TableName returns the table name for GORM.
func (UserIdentityLink) TableName() string {
	return "user_identity_links"
}

// IdentityMatch is a fuzzy-suggested (never auto-applied) link between
// two provider accounts, surfaced through the admin socket.
type IdentityMatch struct {
	ID         uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeA      string  `gorm:"not null;size:600" json:"nodeA"`
	NodeB      string  `gorm:"not null;size:600" json:"nodeB"`
	Similarity float64 `gorm:"not null" json:"similarity"`
}

// TableName returns the table name for GORM.
func (IdentityMatch) TableName() string {
	return "identity_matches"
}
