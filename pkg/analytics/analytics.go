// Package analytics persists a summary row per completed search to a local
// SQLite database and answers aggregate queries over that history.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	providers TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	search_time_ms INTEGER NOT NULL,
	cache_hit INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);
CREATE INDEX IF NOT EXISTS idx_searches_query ON searches(query);
`

// Store records search summaries. Safe for concurrent use; SQLite write
// serialization is handled by the driver and the busy timeout.
type Store struct {
	db *sql.DB
}

// SearchRecord is one persisted search summary.
type SearchRecord struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Providers    []string  `json:"providers"`
	ResultCount  int       `json:"resultCount"`
	SearchTimeMs int64     `json:"searchTimeMs"`
	CacheHit     bool      `json:"cacheHit"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Stats aggregates the recorded history.
type Stats struct {
	TotalSearches   int64   `json:"totalSearches"`
	CacheHits       int64   `json:"cacheHits"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	AvgSearchTimeMs float64 `json:"avgSearchTimeMs"`
	AvgResultCount  float64 `json:"avgResultCount"`
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Apply performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements the search service's Recorder interface.
func (s *Store) Record(ctx context.Context, query string, providers []string, resultCount int, searchTimeMs int64, cacheHit bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, query, providers, result_count, search_time_ms, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		query,
		strings.Join(providers, ","),
		resultCount,
		searchTimeMs,
		boolToInt(cacheHit),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting search record: %w", err)
	}
	return nil
}

// Stats aggregates over the whole recorded history.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(cache_hit), 0),
		        COALESCE(AVG(search_time_ms), 0),
		        COALESCE(AVG(result_count), 0)
		 FROM searches`)

	var stats Stats
	if err := row.Scan(&stats.TotalSearches, &stats.CacheHits, &stats.AvgSearchTimeMs, &stats.AvgResultCount); err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	if stats.TotalSearches > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalSearches)
	}
	return &stats, nil
}

// Recent returns the most recent records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, providers, result_count, search_time_ms, cache_hit, created_at
		 FROM searches ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent searches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []SearchRecord
	for rows.Next() {
		var (
			record    SearchRecord
			providers string
			cacheHit  int
		)
		if err := rows.Scan(&record.ID, &record.Query, &providers, &record.ResultCount, &record.SearchTimeMs, &cacheHit, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning search record: %w", err)
		}
		if providers != "" {
			record.Providers = strings.Split(providers, ",")
		}
		record.CacheHit = cacheHit != 0
		records = append(records, record)
	}
	return records, rows.Err()
}

// TopQueries returns the most frequent normalized queries and their counts.
func (s *Store) TopQueries(ctx context.Context, limit int) (map[string]int64, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, COUNT(*) AS n FROM searches
		 GROUP BY query ORDER BY n DESC, query LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top queries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	top := make(map[string]int64)
	for rows.Next() {
		var (
			query string
			count int64
		)
		if err := rows.Scan(&query, &count); err != nil {
			return nil, fmt.Errorf("scanning top query: %w", err)
		}
		top[query] = count
	}
	return top, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
