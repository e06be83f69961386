package migrations

import "embed"

// FS embeds the bootstrap schema so the daemon binary carries it without
// relying on files next to the executable, matching the teacher's
// migration-manager discipline of running migrations against the
// underlying sql.DB before handing the connection to gorm.
//
//go:embed *.sql
var FS embed.FS
