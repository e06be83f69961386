// Package version holds build-time identification, set via linker
// flags. Grounded on the version-package shape used elsewhere in the
// retrieved corpus (a package-level Version var plus a UserAgent
// helper for outbound HTTP calls).
package version

import "fmt"

var (
	// Version is the daemon's release version; overridden at build
	// time via -ldflags.
	Version = "0.0.0-dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)

// Full returns a human-readable string combining version, commit, and
// build time, used by the version subcommand.
func Full() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}

// UserAgent returns "minna/" followed by Version. No HTTP client in
// this repository sets it on its requests.
func UserAgent() string {
	return fmt.Sprintf("minna/%s", Version)
}
