package retrieval

import (
	"regexp"

	"github.com/minnahq/minna/pkg/graph"
)

// uriPattern reconstructs a graph node id from a (source, uri) pair.
// Table is illustrative, not exhaustive; a URI matching none of these
// gets no ring boost (handled by the caller, not here).
type uriPattern struct {
	source  string
	pattern *regexp.Regexp
	nodeFor func(m []string) string
}

var uriPatterns = []uriPattern{
	{
		source:  "linear",
		pattern: regexp.MustCompile(`^linear://issue/([A-Za-z0-9\-]+)$`),
		nodeFor: func(m []string) string { return graph.CanonicalID("issue", "linear", m[1]) },
	},
	{
		source:  "github",
		pattern: regexp.MustCompile(`/pull/(\d+)$`),
		nodeFor: func(m []string) string { return graph.CanonicalID("pr", "github", m[1]) },
	},
	{
		source:  "github",
		pattern: regexp.MustCompile(`/issues/(\d+)$`),
		nodeFor: func(m []string) string { return graph.CanonicalID("issue", "github", m[1]) },
	},
	{
		source:  "slack",
		pattern: regexp.MustCompile(`^slack://([^/]+)/([\d.]+)$`),
		nodeFor: func(m []string) string { return graph.CanonicalID("message", "slack", m[2]) },
	},
	{
		source:  "notion",
		pattern: regexp.MustCompile(`^notion://page/([A-Za-z0-9\-]+)$`),
		nodeFor: func(m []string) string { return graph.CanonicalID("document", "notion", m[1]) },
	},
	{
		source:  "google",
		pattern: regexp.MustCompile(`^google://doc/([A-Za-z0-9\-_]+)$`),
		nodeFor: func(m []string) string { return graph.CanonicalID("document", "google", m[1]) },
	},
}

// candidateNodeIDs returns every node id that might correspond to uri,
// in pattern-declaration order. A document can legitimately produce
// zero candidates (no ring boost) or more than one if multiple
// patterns happen to match.
func candidateNodeIDs(uri string) []string {
	var ids []string
	for _, p := range uriPatterns {
		if m := p.pattern.FindStringSubmatch(uri); m != nil {
			ids = append(ids, p.nodeFor(m))
		}
	}
	return ids
}
