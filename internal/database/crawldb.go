package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitescraper/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "sitescraper.db"

// CrawlDB provides SQLite-based storage for crawl history.
// One row is kept per crawl run and one per page fetched in that run.
//
// Design decision: We use a single database file for all sites rather
// than one file per output directory because:
//  1. The history command can list every crawl without knowing where the
//     mirrors were written
//  2. Runs of the same seed can be compared with a single query
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	// Two crawls may share one history file, so writers wait for the lock.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per invocation of the crawler
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		save_errors INTEGER DEFAULT 0,
		interrupted INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages saved during a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id),
		url TEXT NOT NULL,
		path TEXT,
		depth INTEGER NOT NULL,
		title TEXT,
		status_code INTEGER,
		failed INTEGER DEFAULT 0,
		save_failed INTEGER DEFAULT 0,
		error TEXT,
		content_hash TEXT,
		links INTEGER DEFAULT 0,
		elapsed_ms INTEGER DEFAULT 0,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a stored crawl run.
type Run struct {
	ID          int64     `json:"id"`
	Seed        string    `json:"seed"`
	OutputDir   string    `json:"output_dir"`
	MaxDepth    int       `json:"max_depth"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Pages       int       `json:"pages"`
	Failed      int       `json:"failed"`
	SaveErrors  int       `json:"save_errors"`
	Interrupted bool      `json:"interrupted"`
}

// Finished reports whether FinishRun was called for the run.
// A run that is not finished was killed before it could be closed.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// StartRun inserts a new run and returns its ID.
func (cdb *CrawlDB) StartRun(ctx context.Context, seed, outputDir string, maxDepth int, startedAt time.Time) (int64, error) {
	query := `
	INSERT INTO crawl_runs (seed, output_dir, max_depth, started_at)
	VALUES (?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query, seed, outputDir, maxDepth, formatTimestamp(startedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to start crawl run: %w", err)
	}
	return result.LastInsertId()
}

// InsertPage stores one page of a run.
// Uses UPSERT so a page reported twice keeps only its latest state.
func (cdb *CrawlDB) InsertPage(ctx context.Context, runID int64, record model.PageRecord) error {
	query := `
	INSERT INTO pages (run_id, url, path, depth, title, status_code, failed, save_failed, error, content_hash, links, elapsed_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		path = excluded.path,
		depth = excluded.depth,
		title = excluded.title,
		status_code = excluded.status_code,
		failed = excluded.failed,
		save_failed = excluded.save_failed,
		error = excluded.error,
		content_hash = excluded.content_hash,
		links = excluded.links,
		elapsed_ms = excluded.elapsed_ms
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		record.URL,
		record.Path,
		record.Depth,
		record.Title,
		record.StatusCode,
		record.Failed,
		record.SaveFailed,
		record.Error,
		record.ContentHash,
		record.Links,
		record.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page %s: %w", record.URL, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, runID int64, summary *model.CrawlSummary) error {
	query := `
	UPDATE crawl_runs
	SET finished_at = ?, pages = ?, failed = ?, save_errors = ?, interrupted = ?
	WHERE id = ?
	`

	finishedAt := summary.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(finishedAt),
		len(summary.Pages),
		summary.TotalFailed(),
		summary.SaveErrors,
		summary.Interrupted,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish crawl run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, seed, output_dir, max_depth, started_at, finished_at, pages, failed, save_errors, interrupted`

// GetRun retrieves a run by ID. Returns nil when no such run exists.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs WHERE id = ?`

	run, err := scanRun(cdb.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. An empty seed lists runs of every
// seed; limit <= 0 means no limit.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs WHERE 1=1`
	args := make([]any, 0)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListSeeds returns every seed with at least one run, sorted.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	seeds := make([]string, 0)
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// ListPages returns the pages of a run in the order they were saved.
func (cdb *CrawlDB) ListPages(ctx context.Context, runID int64) ([]model.PageRecord, error) {
	query := `
	SELECT url, path, depth, title, status_code, failed, save_failed, error, content_hash, links, elapsed_ms
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageRecord, 0)
	for rows.Next() {
		var (
			p         model.PageRecord
			path      sql.NullString
			title     sql.NullString
			errText   sql.NullString
			hash      sql.NullString
			elapsedMS int64
		)
		if err := rows.Scan(
			&p.URL,
			&path,
			&p.Depth,
			&title,
			&p.StatusCode,
			&p.Failed,
			&p.SaveFailed,
			&errText,
			&hash,
			&p.Links,
			&elapsedMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Path = path.String
		p.Title = title.String
		p.Error = errText.String
		p.ContentHash = hash.String
		p.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.Seed,
		&run.OutputDir,
		&run.MaxDepth,
		&startedAt,
		&finishedAt,
		&run.Pages,
		&run.Failed,
		&run.SaveErrors,
		&run.Interrupted,
	); err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return &run, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,           // Written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// timestampLayout has a fixed-width fraction so that lexical order in SQL is
// chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// formatTimestamp stores times in UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
