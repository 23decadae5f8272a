// Package history archives validation and conversion runs in a local
// SQLite database so operators can answer "what did this sheet look like
// last week" without keeping terminal scrollback.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sheetnerd/internal/validate"
)

// ErrNotFound reports a run id with no archived record.
var ErrNotFound = errors.New("run not found")

// Operation names recorded with each run.
const (
	OpValidate = "validate"
	OpConvert  = "convert"
	OpWatch    = "watch"
)

// timeLayout keeps created_at fixed-width so string ordering matches
// chronological ordering.
const timeLayout = "2006-01-02 15:04:05.000"

// Finding is one archived validation issue.
type Finding struct {
	Severity string
	Code     string
	Message  string
}

// Run is one archived tool invocation against a sheet.
type Run struct {
	ID        string
	Path      string
	Format    string // V1, V2 or UNKNOWN
	Operation string
	Passed    bool
	Errors    int
	Warnings  int
	CreatedAt time.Time
	Findings  []Finding
}

// NewRun assembles a Run from a validation report. Findings keep the
// report's order: errors first, then warnings.
func NewRun(path, format, operation string, report *validate.Report) Run {
	run := Run{
		Path:      path,
		Format:    format,
		Operation: operation,
		Passed:    report.Passed(),
		Errors:    len(report.Errors),
		Warnings:  len(report.Warnings),
	}
	for _, iss := range report.Errors {
		run.Findings = append(run.Findings, Finding{string(iss.Severity), iss.Code, iss.Message})
	}
	for _, iss := range report.Warnings {
		run.Findings = append(run.Findings, Finding{string(iss.Severity), iss.Code, iss.Message})
	}
	return run
}

// Stats summarizes the archive.
type Stats struct {
	Runs        int
	Passed      int
	Failed      int
	Findings    int
	ByOperation map[string]int
}

// Store is the SQLite-backed run archive. Single writer; safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// Open initializes the archive at the given path, creating parent
// directories and tables as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		operation TEXT NOT NULL,
		passed BOOLEAN NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_path ON runs(path);
	`

	findingsTable := `
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		code TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	`

	for _, table := range []string{runsTable, findingsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.dbPath
}

// SaveRun archives a run with its findings and returns the run id. An
// empty Run.ID gets a fresh uuid; a zero CreatedAt gets the current time.
func (s *Store) SaveRun(run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := run.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, path, format, operation, passed, error_count, warning_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.Path, run.Format, run.Operation, run.Passed,
		run.Errors, run.Warnings, createdAt.UTC().Format(timeLayout),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, f := range run.Findings {
		if _, err := tx.Exec(
			`INSERT INTO findings (run_id, severity, code, message) VALUES (?, ?, ?, ?)`,
			id, f.Severity, f.Code, f.Message,
		); err != nil {
			return "", fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("archived run",
		zap.String("id", id),
		zap.String("path", run.Path),
		zap.String("operation", run.Operation))
	return id, nil
}

// ListRuns returns the newest runs first, without findings. A limit of
// zero or less means 20.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, path, format, operation, passed, error_count, warning_count, created_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one archived run with its findings. Unique id prefixes of
// at least four characters are accepted.
func (s *Store) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, path, format, operation, passed, error_count, warning_count, created_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) && len(id) >= 4 {
		run, err = s.getRunByPrefix(id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run '%s': %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.Query(
		`SELECT severity, code, message FROM findings WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return Run{}, fmt.Errorf("failed to load findings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.Severity, &f.Code, &f.Message); err != nil {
			return Run{}, fmt.Errorf("failed to scan finding: %w", err)
		}
		run.Findings = append(run.Findings, f)
	}
	return run, rows.Err()
}

func (s *Store) getRunByPrefix(prefix string) (Run, error) {
	rows, err := s.db.Query(
		`SELECT id, path, format, operation, passed, error_count, warning_count, created_at
		 FROM runs WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return Run{}, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	switch len(matches) {
	case 0:
		return Run{}, sql.ErrNoRows
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run id '%s' is ambiguous", prefix)
	}
}

// Prune deletes all but the newest keep runs and their findings,
// returning the number of runs removed.
func (s *Store) Prune(keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`DELETE FROM runs WHERE id NOT IN
		 (SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM findings WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		return 0, fmt.Errorf("failed to prune findings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	if pruned > 0 {
		s.logger.Debug("pruned runs", zap.Int64("removed", pruned), zap.Int("kept", keep))
	}
	return int(pruned), nil
}

// Stats summarizes the archive contents.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	if err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0) FROM runs`,
	).Scan(&st.Runs, &st.Passed); err != nil {
		return Stats{}, fmt.Errorf("failed to count runs: %w", err)
	}
	st.Failed = st.Runs - st.Passed

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM findings`).Scan(&st.Findings); err != nil {
		return Stats{}, fmt.Errorf("failed to count findings: %w", err)
	}

	rows, err := s.db.Query(`SELECT operation, COUNT(*) FROM runs GROUP BY operation`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to group runs: %w", err)
	}
	defer rows.Close()

	st.ByOperation = make(map[string]int)
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return Stats{}, fmt.Errorf("failed to scan stats: %w", err)
		}
		st.ByOperation[op] = n
	}
	return st, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var created string
	err := sc.Scan(&run.ID, &run.Path, &run.Format, &run.Operation,
		&run.Passed, &run.Errors, &run.Warnings, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	run.CreatedAt = ts
	return run, nil
}
