package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrSchemaVersion is returned when a read-only store finds a database
// whose schema version differs from the one this package writes.
var ErrSchemaVersion = errors.New("unsupported schema version")

// migration upgrades the schema by one user_version step.
type migration struct {
	version int
	stmt    string
}

// migrations run in order on every writable open; each step is skipped
// once user_version has reached it.
var migrations = []migration{
	{
		// Backs CountOutcomes and the outcome_count assertion.
		version: 1,
		stmt:    `CREATE INDEX IF NOT EXISTS idx_outcomes_run_label ON outcomes(run_id, label, outcome)`,
	},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// Store records scenario runs: one row per run, one per transaction
// instance outcome and one per final cell value.
type Store struct {
	db *sql.DB
}

type config struct {
	busyTimeout time.Duration
	readOnly    bool
}

// Option configures Open.
type Option func(*config)

// WithBusyTimeout sets how long a statement waits on a locked database.
// Defaults to 5s.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) {
		c.busyTimeout = d
	}
}

// ReadOnly opens an existing database without creating or migrating it.
func ReadOnly() Option {
	return func(c *config) {
		c.readOnly = true
	}
}

// Open creates or opens the SQLite database at path. Writable stores use
// WAL journaling and get the embedded schema plus any pending migrations.
// Pass ":memory:" for a throwaway store; it lives as long as the Store.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := path
	if cfg.readOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database disappears with its last connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(cfg); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(cfg config) error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := [][2]string{
		{"busy_timeout", strconv.FormatInt(cfg.busyTimeout.Milliseconds(), 10)},
		{"foreign_keys", "ON"},
	}
	if !cfg.readOnly {
		pragmas = append(pragmas, [2]string{"journal_mode", "WAL"}, [2]string{"synchronous", "NORMAL"})
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec("PRAGMA " + p[0] + " = " + p[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", p[0], err)
		}
	}

	if cfg.readOnly {
		return s.checkVersion()
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return s.migrate()
}

// migrate applies every migration newer than user_version, each in its
// own transaction together with the version bump.
func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) checkVersion() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version != currentSchemaVersion {
		return fmt.Errorf("%w: database has v%d, want v%d", ErrSchemaVersion, version, currentSchemaVersion)
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	v, err := s.pragma("user_version")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
