package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minnahq/minna/pkg/models"
)

// UpsertUserIdentity creates or updates a canonical identity row.
func (s *Store) UpsertUserIdentity(identity models.UserIdentity) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name"}),
	}).Create(&identity).Error
}

// LinkIdentity records that (provider, providerUserID) resolves to
// canonicalID. Multiple links sharing one canonical id is the
// definition of "linked".
func (s *Store) LinkIdentity(provider, providerUserID, canonicalID string) error {
	link := models.UserIdentityLink{Provider: provider, ProviderUserID: providerUserID, CanonicalID: canonicalID}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_id"}),
	}).Create(&link).Error
}

// UserNodesWithEmail returns every User-type graph node that carries an
// email in its metadata, used by the auto-link-by-email pass.
func (s *Store) UserNodesWithEmail() ([]models.GraphNode, error) {
	var nodes []models.GraphNode
	err := s.db.Where("node_type = ? AND metadata LIKE ?", "user", `%"email"%`).Find(&nodes).Error
	if err != nil {
		return nil, fmt.Errorf("listing user nodes with email: %w", err)
	}
	return nodes, nil
}

// RecordIdentityMatch persists a fuzzy suggestion for later admin-socket
// confirmation; it is never auto-applied.
func (s *Store) RecordIdentityMatch(nodeA, nodeB string, similarity float64) error {
	return s.db.Create(&models.IdentityMatch{NodeA: nodeA, NodeB: nodeB, Similarity: similarity}).Error
}

// IdentityMatches returns every pending fuzzy suggestion.
func (s *Store) IdentityMatches() ([]models.IdentityMatch, error) {
	var matches []models.IdentityMatch
	if err := s.db.Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("listing identity matches: %w", err)
	}
	return matches, nil
}

// PrimaryIdentity returns an arbitrary linked canonical identity, used
// at startup to pick the Ring Engine's root node once at least one
// identity-linking pass has run. ok is false until a first identity
// exists.
func (s *Store) PrimaryIdentity() (canonicalID string, ok bool, err error) {
	var identity models.UserIdentity
	err = s.db.Order("canonical_id").First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("looking up primary identity: %w", err)
	}
	return identity.CanonicalID, true, nil
}
