// Package graph implements the Gravity Well: ring-assignment over the
// node/edge graph persisted by pkg/store, plus identity linking across
// providers. No cyclic object graphs live in memory here — nodes are
// always referenced by their canonical id string, never by pointer, so
// the traversal below uses plain maps and value semantics throughout.
package graph

import (
	"fmt"
	"strings"
)

// CanonicalID formats a graph node's natural key: "{type}:{provider}:{externalId}".
func CanonicalID(nodeType, provider, externalID string) string {
	return fmt.Sprintf("%s:%s:%s", nodeType, provider, externalID)
}

// ParseCanonicalID splits a canonical id back into its three parts.
// ExternalID may itself contain colons, so it takes everything after
// the second separator.
func ParseCanonicalID(id string) (nodeType, provider, externalID string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
