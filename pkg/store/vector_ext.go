package store

import (
	"database/sql"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/hashicorp/go-hclog"
)

// probeVectorExtension loads the sqlite-vec extension if it is available
// on this platform/build. Failure is non-fatal: search_vectors falls
// back to the exhaustive in-process scan the spec requires anyway.
func probeVectorExtension(db *sql.DB, log hclog.Logger) bool {
	sqlite_vec.Auto()
	if _, err := db.Exec("SELECT vec_version()"); err != nil {
		log.Debug("sqlite-vec extension unavailable, falling back to exhaustive vector scan", "error", err)
		return false
	}
	log.Debug("sqlite-vec extension loaded")
	return true
}
