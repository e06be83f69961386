package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateSince_FullModeDefaultsTo90Days(t *testing.T) {
	got := CalculateSince(0, ModeFull, "")
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -90), got, time.Minute)
}

func TestCalculateSince_ExplicitSinceDaysWins(t *testing.T) {
	got := CalculateSince(7, ModeIncremental, "2020-01-01T00:00:00Z")
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -7), got, time.Minute)
}

func TestCalculateSince_FallsBackToCursor(t *testing.T) {
	got := CalculateSince(0, ModeIncremental, "2020-06-15T00:00:00Z")
	require.Equal(t, 2020, got.Year())
}

func TestCalculateSince_DefaultsTo30Days(t *testing.T) {
	got := CalculateSince(0, ModeIncremental, "")
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), got, time.Minute)
}
