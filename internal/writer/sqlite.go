package writer

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - runs, scenarios, query_results
// 2 - query_results.digest
const currentSchemaVersion = 2

const defaultSQLiteFile = "results.db"

// sqliteWriter stores every run, scenario and query outcome in a SQLite
// database so results can be queried across runs.
type sqliteWriter struct {
	log   zerolog.Logger
	now   func() time.Time
	runID string

	mu         sync.Mutex
	db         *sql.DB
	runCreated bool
}

func newSQLite(env Env) *sqliteWriter {
	return &sqliteWriter{log: env.Log, now: env.Now, runID: env.RunID}
}

func (w *sqliteWriter) Name() string { return NameSQLite }

// Init opens writer.sqlite.path, defaulting to results.db in output.dir.
func (w *sqliteWriter) Init(props config.Properties) bool {
	path := props.Get(config.KeySQLitePath)
	if path == "" {
		out := props.Get(config.KeyOutputDir)
		if out == "" {
			w.log.Error().Msgf("cannot store results: neither %s nor %s is set", config.KeySQLitePath, config.KeyOutputDir)
			return false
		}
		path = filepath.Join(out, defaultSQLiteFile)
	}

	db, err := openResultsDB(path)
	if err != nil {
		w.log.Error().Err(err).Str("path", path).Msg("cannot store results")
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db != nil {
		w.db.Close()
	}
	w.db = db
	w.runCreated = false
	return true
}

// openResultsDB opens or creates the database and brings its schema up to
// date. The database runs in WAL mode with a single connection.
func openResultsDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if version == 1 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 adds the digest column to databases created at version 1.
func migrateToV2(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM pragma_table_info('query_results') WHERE name = 'digest'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE query_results ADD COLUMN digest TEXT`); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

func (w *sqliteWriter) WriteScenario(ctx context.Context, s *scenario.Scenario) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db == nil {
		return fmt.Errorf("%s writer is not initialized", NameSQLite)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !w.runCreated {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO runs (id, started_at) VALUES (?, ?)`,
			w.runID, w.now().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
	}

	c := s.Counts()
	var scenarioErr any
	if s.Err != nil {
		scenarioErr = s.Err.Error()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO scenarios (run_id, name, passed, total, pass_count, fail_count, skip_count, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.runID, s.ID, s.Passed(), c.All, c.Passed, c.Failed, c.Skipped,
		timestamp(s.Start), timestamp(s.End), scenarioErr)
	if err != nil {
		return fmt.Errorf("insert scenario: %w", err)
	}
	scenarioID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scenario id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO query_results (scenario_id, suite, query_set, query, status, reason, duration_ms, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare query insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range s.Queries() {
		r := q.Result()
		status := string(r.Status())
		if status == "" {
			status = "pending"
		}
		var reason, digest, duration any
		if !r.Passed() && r.Reason() != "" {
			reason = r.Reason()
		}
		if q.Actual != nil {
			d, err := resultset.Digest(q.Actual)
			if err != nil {
				return fmt.Errorf("digest %s/%s: %w", q.Suite, q.ID, err)
			}
			digest = d
		}
		if q.Executed() {
			duration = q.Duration().Milliseconds()
		}
		if _, err := stmt.ExecContext(ctx, scenarioID, q.Suite, q.Set, q.ID, status, reason, duration, digest); err != nil {
			return fmt.Errorf("insert query %s/%s: %w", q.Suite, q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	w.runCreated = true
	return nil
}

func timestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (w *sqliteWriter) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db == nil {
		return
	}
	if err := w.db.Close(); err != nil {
		w.log.Warn().Err(err).Msg("closing results database")
	}
	w.db = nil
}
