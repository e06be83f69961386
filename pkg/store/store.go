// Package store is the single embedded SQL database: documents plus
// full-text index, vector rows, sync cursors, clusters, and the
// Gravity Well's graph nodes/edges/ring assignments/user identities.
// Every component that touches persistence shares one *Store handle
// onto one SQLite file.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-hclog"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/minnahq/minna/pkg/models"
	"github.com/minnahq/minna/pkg/store/migrations"
)

// Store wraps the shared gorm.DB handle. All document, vector, cursor,
// cluster, and graph persistence operations hang off it.
type Store struct {
	db     *gorm.DB
	log    hclog.Logger
	vecCap bool // whether the sqlite-vec extension loaded successfully
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the default null logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open creates the data directory if needed, runs the bootstrap schema,
// and returns a ready Store backed by the SQLite file at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	s := &Store{log: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(s)
	}

	if err := runMigrations(path, s.log); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	// Spec default: 4 connections in the embedded engine's pool.
	sqlDB.SetMaxOpenConns(4)

	if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
		return nil, fmt.Errorf("auto-migrating derived models: %w", err)
	}

	s.db = db
	s.vecCap = probeVectorExtension(sqlDB, s.log)
	return s, nil
}

func runMigrations(path string, log hclog.Logger) error {
	// :memory: databases get their schema from gorm's AutoMigrate alone;
	// golang-migrate needs a durable file to track its version table.
	if path == "" || path == ":memory:" {
		return nil
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening raw sqlite handle: %w", err)
	}
	defer sqlDB.Close()

	dbDriver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("constructing migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	log.Debug("schema migrations applied")
	return nil
}

// DB exposes the underlying gorm handle for callers that need raw
// queries outside this package's API.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
