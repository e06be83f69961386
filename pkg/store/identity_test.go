package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minnahq/minna/pkg/models"
)

func TestPrimaryIdentity_NoneLinkedYet(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.PrimaryIdentity()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrimaryIdentity_ReturnsLinkedIdentity(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertUserIdentity(models.UserIdentity{CanonicalID: "user:identity:me@example.com"}))

	id, ok, err := s.PrimaryIdentity()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user:identity:me@example.com", id)
}
