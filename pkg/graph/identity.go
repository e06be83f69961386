package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/minnahq/minna/pkg/models"
	"github.com/minnahq/minna/pkg/store"
)

// nodeMetadata is the subset of a GraphNode's JSON metadata blob this
// package cares about. Providers are free to stash additional fields;
// unknown keys are ignored on decode.
type nodeMetadata struct {
	Email string `json:"email"`
}

// Identity runs the two identity-linking modes over a shared Store.
type Identity struct {
	store *store.Store
}

// NewIdentity constructs an identity linker.
func NewIdentity(s *store.Store) *Identity {
	return &Identity{store: s}
}

// AutoLinkByEmail groups User nodes that share a lowercased email and
// links them under one canonical identity. Returns the number of nodes
// newly linked. A failure linking one email group never stops the
// others from being attempted; every failure is aggregated into the
// returned error via go-multierror, matching the teacher's convention
// for reporting partial failures from a batch pass.
func (id *Identity) AutoLinkByEmail() (int, error) {
	nodes, err := id.store.UserNodesWithEmail()
	if err != nil {
		return 0, fmt.Errorf("listing user nodes with email: %w", err)
	}

	byEmail := make(map[string][]models.GraphNode)
	for _, n := range nodes {
		meta, ok := decodeNodeMetadata(n.Metadata)
		if !ok || meta.Email == "" {
			continue
		}
		email := strings.ToLower(meta.Email)
		byEmail[email] = append(byEmail[email], n)
	}

	var errs *multierror.Error
	linked := 0
	for email, group := range byEmail {
		if len(group) < 2 {
			continue
		}
		canonicalID := CanonicalID("user", "identity", email)
		var displayName *string
		for _, n := range group {
			if n.DisplayName != nil {
				displayName = n.DisplayName
				break
			}
		}
		if err := id.store.UpsertUserIdentity(models.UserIdentity{
			CanonicalID: canonicalID,
			Email:       &email,
			DisplayName: displayName,
		}); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("upserting identity for %s: %w", email, err))
			continue
		}
		for _, n := range group {
			if err := id.store.LinkIdentity(n.Provider, n.ExternalID, canonicalID); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("linking %s:%s to %s: %w", n.Provider, n.ExternalID, canonicalID, err))
				continue
			}
			linked++
		}
	}
	return linked, errs.ErrorOrNil()
}

func decodeNodeMetadata(raw models.JSON) (nodeMetadata, bool) {
	if len(raw) == 0 {
		return nodeMetadata{}, false
	}
	var meta nodeMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nodeMetadata{}, false
	}
	return meta, true
}

// FuzzyThreshold is the similarity cutoff above which a suggestion is
// emitted; suggestions are never auto-applied.
const FuzzyThreshold = 0.8

// SuggestFuzzyMatches compares display names across every pair of User
// nodes and records an IdentityMatch for any pair above FuzzyThreshold.
func (id *Identity) SuggestFuzzyMatches() (int, error) {
	nodes, err := id.store.AllNodes()
	if err != nil {
		return 0, fmt.Errorf("listing nodes: %w", err)
	}

	var users []models.GraphNode
	for _, n := range nodes {
		if n.NodeType == "user" && n.DisplayName != nil && *n.DisplayName != "" {
			users = append(users, n)
		}
	}

	suggested := 0
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			a, b := users[i], users[j]
			if a.Provider == b.Provider {
				continue
			}
			sim := NameSimilarity(*a.DisplayName, *b.DisplayName)
			if sim <= FuzzyThreshold {
				continue
			}
			idA := CanonicalID(a.NodeType, a.Provider, a.ExternalID)
			idB := CanonicalID(b.NodeType, b.Provider, b.ExternalID)
			if err := id.store.RecordIdentityMatch(idA, idB, sim); err != nil {
				return suggested, fmt.Errorf("recording identity match %s/%s: %w", idA, idB, err)
			}
			suggested++
		}
	}
	return suggested, nil
}

// NameSimilarity is deliberately not Jaro-Winkler: lowercase both names,
// exact match scores 1.0, otherwise Jaccard similarity over character
// sets plus a small shared-prefix bonus capped at +0.1, clamped to
// [0, 1].
func NameSimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}

	setA, setB := charSet(a), charSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	union := make(map[rune]bool, len(setA)+len(setB))
	for r := range setA {
		union[r] = true
		if setB[r] {
			intersection++
		}
	}
	for r := range setB {
		union[r] = true
	}
	jaccard := float64(intersection) / float64(len(union))

	prefixLen := sharedPrefixLen(a, b)
	bonus := math.Min(0.1, float64(prefixLen)*0.02)

	return math.Max(0, math.Min(1, jaccard+bonus))
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}

func sharedPrefixLen(a, b string) int {
	n := 0
	ra, rb := []rune(a), []rune(b)
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}
