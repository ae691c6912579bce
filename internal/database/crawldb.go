package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkcollector/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "linkcollector.db"

// ErrNotEnoughCrawls is returned by CompareLatest when the seed has fewer
// than two saved crawls.
var ErrNotEnoughCrawls = errors.New("at least two crawls of the seed are needed for a comparison")

// CrawlDB stores crawl results. All crawls share one database file so that
// history and relationship queries can span seeds.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the crawl database in dbDir.
// With CreateIfNotExists unset a missing database is an error, which lets
// read-only commands such as history fail without leaving an empty file.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: run a crawl first", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

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

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id TEXT NOT NULL UNIQUE,
		seed_url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		depth INTEGER NOT NULL,
		unique_links INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT NOT NULL,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_seed ON crawls(seed_url);
	CREATE INDEX IF NOT EXISTS idx_crawls_timestamp ON crawls(timestamp);

	-- Collected URLs in first-discovery order
	CREATE TABLE IF NOT EXISTS collected_urls (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (crawl_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_collected_url ON collected_urls(url);

	CREATE TABLE IF NOT EXISTS relationships (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		source TEXT NOT NULL,
		found TEXT NOT NULL,
		PRIMARY KEY (crawl_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_rel_found ON relationships(found);
	CREATE INDEX IF NOT EXISTS idx_rel_source ON relationships(source);

	CREATE TABLE IF NOT EXISTS crawl_errors (
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		error_type TEXT NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (crawl_id, position)
	);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Fingerprint returns a SHA3-256 digest of the set of collected URLs.
// Two crawls with the same fingerprint found exactly the same links,
// regardless of discovery order.
func Fingerprint(result *model.CrawlResult) string {
	urls := slices.Clone(result.AllCollectedURLs)
	slices.Sort(urls)
	urls = slices.Compact(urls)
	sum := sha3.Sum256([]byte(strings.Join(urls, "\n")))
	return hex.EncodeToString(sum[:])
}

// SaveCrawlResult stores result and returns its database ID.
// The crawl row and its URLs, relationships and errors are written in one
// transaction.
func (cdb *CrawlDB) SaveCrawlResult(ctx context.Context, result *model.CrawlResult) (id int64, err error) {
	if result == nil {
		return 0, errors.New("cannot save a nil crawl result")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize crawl result: %w", err)
	}

	timestamp := result.Stats.EndTime
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	crawlID := result.ID
	if crawlID == "" {
		crawlID = fmt.Sprintf("%s@%d", result.InitialURL, timestamp.UnixNano())
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawls (crawl_id, seed_url, timestamp, status, depth, unique_links, error_count, fingerprint, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		crawlID,
		result.InitialURL,
		timestamp.UTC().Format(time.RFC3339Nano),
		string(result.Status),
		result.Depth,
		result.Stats.UniqueLinks,
		len(result.Errors),
		Fingerprint(result),
		string(resultJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read crawl id: %w", err)
	}

	for i, u := range result.AllCollectedURLs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO collected_urls (crawl_id, position, url) VALUES (?, ?, ?)`,
			id, i, u,
		); err != nil {
			return 0, fmt.Errorf("failed to insert collected url: %w", err)
		}
	}
	for i, rel := range result.LinkRelationships {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO relationships (crawl_id, position, source, found) VALUES (?, ?, ?, ?)`,
			id, i, rel.Source, rel.Found,
		); err != nil {
			return 0, fmt.Errorf("failed to insert relationship: %w", err)
		}
	}
	for i, e := range result.Errors {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO crawl_errors (crawl_id, position, url, error_type, message) VALUES (?, ?, ?, ?, ?)`,
			id, i, e.URL, string(e.ErrorType), e.Message,
		); err != nil {
			return 0, fmt.Errorf("failed to insert crawl error: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}
	return id, nil
}

// GetLatestCrawl returns the most recently saved crawl of seedURL, or nil
// if the seed was never crawled.
func (cdb *CrawlDB) GetLatestCrawl(ctx context.Context, seedURL string) (*model.CrawlResult, error) {
	return cdb.loadResult(ctx, `
	SELECT result_json FROM crawls
	WHERE seed_url = ?
	ORDER BY id DESC
	LIMIT 1
	`, seedURL)
}

// GetCrawlByID returns the crawl with the given database ID, or nil if it
// does not exist.
func (cdb *CrawlDB) GetCrawlByID(ctx context.Context, id int64) (*model.CrawlResult, error) {
	return cdb.loadResult(ctx, `SELECT result_json FROM crawls WHERE id = ?`, id)
}

func (cdb *CrawlDB) loadResult(ctx context.Context, query string, args ...any) (*model.CrawlResult, error) {
	var resultJSON string
	err := cdb.db.QueryRowContext(ctx, query, args...).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse crawl result: %w", err)
	}
	return &result, nil
}

// ListSeeds returns every crawled seed URL in alphabetical order.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed_url FROM crawls ORDER BY seed_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// CrawlMetadata summarizes a saved crawl without loading its result.
type CrawlMetadata struct {
	// ID is the database ID used by GetCrawlByID and CompareCrawls.
	ID int64 `json:"id"`

	// CrawlID is the identifier assigned by the collector.
	CrawlID string `json:"crawlId"`

	SeedURL     string            `json:"seedUrl"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      model.CrawlStatus `json:"status"`
	Depth       int               `json:"depth"`
	UniqueLinks int               `json:"uniqueLinks"`
	ErrorCount  int               `json:"errorCount"`
	Fingerprint string            `json:"fingerprint"`
}

// GetCrawlHistory returns the metadata of every crawl of seedURL, newest
// first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, seedURL string) ([]CrawlMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, crawl_id, seed_url, timestamp, status, depth, unique_links, error_count, fingerprint
	FROM crawls
	WHERE seed_url = ?
	ORDER BY id DESC
	`, seedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlMetadata
	for rows.Next() {
		var meta CrawlMetadata
		var timestamp, status string
		if err := rows.Scan(
			&meta.ID,
			&meta.CrawlID,
			&meta.SeedURL,
			&timestamp,
			&status,
			&meta.Depth,
			&meta.UniqueLinks,
			&meta.ErrorCount,
			&meta.Fingerprint,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Status = model.CrawlStatus(status)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// Relationship is a stored link relationship.
type Relationship struct {
	// CrawlID is the database ID of the crawl that recorded it.
	CrawlID int64  `json:"crawlId"`
	SeedURL string `json:"seedUrl"`
	Source  string `json:"source"`
	Found   string `json:"found"`
}

// QueryRelationships returns stored relationships, newest crawl first.
// An empty seedURL searches every seed; an empty found returns every
// relationship of the matching crawls.
func (cdb *CrawlDB) QueryRelationships(ctx context.Context, seedURL, found string) ([]Relationship, error) {
	query := `
	SELECT r.crawl_id, c.seed_url, r.source, r.found
	FROM relationships r
	JOIN crawls c ON c.id = r.crawl_id
	WHERE 1=1
	`
	args := make([]any, 0, 2)
	if seedURL != "" {
		query += " AND c.seed_url = ?"
		args = append(args, seedURL)
	}
	if found != "" {
		query += " AND r.found = ?"
		args = append(args, found)
	}
	query += " ORDER BY r.crawl_id DESC, r.position"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var results []Relationship
	for rows.Next() {
		var rel Relationship
		if err := rows.Scan(&rel.CrawlID, &rel.SeedURL, &rel.Source, &rel.Found); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		results = append(results, rel)
	}
	return results, rows.Err()
}

// Comparison describes how the collected URLs changed between two crawls.
type Comparison struct {
	SeedURL  string        `json:"seedUrl"`
	Previous CrawlMetadata `json:"previous"`
	Current  CrawlMetadata `json:"current"`

	// Added are URLs collected by Current but not by Previous.
	Added []string `json:"added"`

	// Removed are URLs collected by Previous but not by Current.
	Removed []string `json:"removed"`

	// Changed are pages scanned by both crawls whose HTML differs.
	Changed []string `json:"changed"`

	// Unchanged is true when both crawls collected the same URL set and
	// no page scanned by both changed.
	Unchanged bool `json:"unchanged"`
}

// CompareLatest compares the two most recent crawls of seedURL.
func (cdb *CrawlDB) CompareLatest(ctx context.Context, seedURL string) (*Comparison, error) {
	history, err := cdb.GetCrawlHistory(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrNotEnoughCrawls, seedURL, len(history))
	}
	return cdb.compare(ctx, history[1], history[0])
}

// CompareCrawls compares two crawls by database ID.
func (cdb *CrawlDB) CompareCrawls(ctx context.Context, previousID, currentID int64) (*Comparison, error) {
	previous, err := cdb.metadataByID(ctx, previousID)
	if err != nil {
		return nil, err
	}
	current, err := cdb.metadataByID(ctx, currentID)
	if err != nil {
		return nil, err
	}
	return cdb.compare(ctx, previous, current)
}

func (cdb *CrawlDB) metadataByID(ctx context.Context, id int64) (CrawlMetadata, error) {
	var seed string
	if err := cdb.db.QueryRowContext(ctx, `SELECT seed_url FROM crawls WHERE id = ?`, id).Scan(&seed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CrawlMetadata{}, fmt.Errorf("crawl %d not found", id)
		}
		return CrawlMetadata{}, fmt.Errorf("failed to get crawl %d: %w", id, err)
	}
	history, err := cdb.GetCrawlHistory(ctx, seed)
	if err != nil {
		return CrawlMetadata{}, err
	}
	for _, meta := range history {
		if meta.ID == id {
			return meta, nil
		}
	}
	return CrawlMetadata{}, fmt.Errorf("crawl %d not found", id)
}

func (cdb *CrawlDB) compare(ctx context.Context, previous, current CrawlMetadata) (*Comparison, error) {
	before, err := cdb.collectedURLs(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	after, err := cdb.collectedURLs(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	changed, err := cdb.changedPages(ctx, previous.ID, current.ID)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		SeedURL:   current.SeedURL,
		Previous:  previous,
		Current:   current,
		Added:     difference(after, before),
		Removed:   difference(before, after),
		Changed:   changed,
		Unchanged: previous.Fingerprint == current.Fingerprint && len(changed) == 0,
	}
	return cmp, nil
}

// changedPages compares the page hashes stored with two crawls.
func (cdb *CrawlDB) changedPages(ctx context.Context, previousID, currentID int64) ([]string, error) {
	previous, err := cdb.GetCrawlByID(ctx, previousID)
	if err != nil {
		return nil, err
	}
	current, err := cdb.GetCrawlByID(ctx, currentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return []string{}, nil
	}
	return current.ChangedPages(previous), nil
}

func (cdb *CrawlDB) collectedURLs(ctx context.Context, id int64) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT url FROM collected_urls WHERE crawl_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get collected urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan collected url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// difference returns the elements of a missing from b, in a's order.
func difference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// timestampFormats are the layouts a stored timestamp may have.
// The order matters: more specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
