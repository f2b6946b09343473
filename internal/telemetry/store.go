package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

// MetricsStore persists aggregated telemetry.
type MetricsStore interface {
	SaveQueryTypeCounts(date string, counts map[string]int64) error
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	UpsertTermCounts(terms map[string]int64) error
	AddZeroResultQuery(query string, ts time.Time) error
	Close() error
}

// SQLiteMetricsStore persists telemetry to a SQLite database.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// NewSQLiteMetricsStore opens (or creates) the telemetry database at
// the given path and initializes its schema.
func NewSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StoreError("open telemetry database", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.StoreError(fmt.Sprintf("set pragma %q", pragma), err)
		}
	}

	if err := initTelemetrySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteMetricsStore{db: db}, nil
}

func initTelemetrySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_type_stats (
		date TEXT NOT NULL,
		query_type TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, query_type)
	);

	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);

	CREATE TABLE IF NOT EXISTS query_terms (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		last_seen INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_zero_result_ts
		ON zero_result_queries(timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		return errors.StoreError("initialize telemetry schema", err)
	}
	return nil
}

// SaveQueryTypeCounts upserts per-day query type counts.
func (s *SQLiteMetricsStore) SaveQueryTypeCounts(date string, counts map[string]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.StoreError("begin telemetry transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO query_type_stats (date, query_type, count)
		VALUES (?, ?, ?)
		ON CONFLICT (date, query_type) DO UPDATE SET count = excluded.count
	`)
	if err != nil {
		return errors.StoreError("prepare query type upsert", err)
	}
	defer stmt.Close()

	for queryType, count := range counts {
		if _, err := stmt.Exec(date, queryType, count); err != nil {
			return errors.StoreError("save query type count", err)
		}
	}
	return tx.Commit()
}

// SaveLatencyCounts upserts per-day latency bucket counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.StoreError("begin telemetry transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO query_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT (date, bucket) DO UPDATE SET count = excluded.count
	`)
	if err != nil {
		return errors.StoreError("prepare latency upsert", err)
	}
	defer stmt.Close()

	for bucket, count := range counts {
		if _, err := stmt.Exec(date, string(bucket), count); err != nil {
			return errors.StoreError("save latency count", err)
		}
	}
	return tx.Commit()
}

// UpsertTermCounts replaces stored term frequencies with the current
// in-memory values.
func (s *SQLiteMetricsStore) UpsertTermCounts(terms map[string]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.StoreError("begin telemetry transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (term) DO UPDATE SET
			count = excluded.count,
			last_seen = excluded.last_seen
	`)
	if err != nil {
		return errors.StoreError("prepare term upsert", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for term, count := range terms {
		if _, err := stmt.Exec(term, count, now); err != nil {
			return errors.StoreError("save term count", err)
		}
	}
	return tx.Commit()
}

// AddZeroResultQuery records a query that produced no context.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, ts time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO zero_result_queries (query, timestamp) VALUES (?, ?)",
		query, ts.UnixMilli(),
	)
	if err != nil {
		return errors.StoreError("save zero result query", err)
	}
	return nil
}

// TopTerms returns the most frequent query terms, capped at limit.
func (s *SQLiteMetricsStore) TopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(
		"SELECT term, count FROM query_terms ORDER BY count DESC, term ASC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.StoreError("query top terms", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, errors.StoreError("scan term row", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// RecentZeroResultQueries returns the latest zero-context queries.
func (s *SQLiteMetricsStore) RecentZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT query FROM zero_result_queries ORDER BY timestamp DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.StoreError("query zero result queries", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, errors.StoreError("scan zero result row", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// QueryTypeTotals sums persisted query counts per type across all days.
func (s *SQLiteMetricsStore) QueryTypeTotals() (map[string]int64, error) {
	rows, err := s.db.Query(
		"SELECT query_type, SUM(count) FROM query_type_stats GROUP BY query_type",
	)
	if err != nil {
		return nil, errors.StoreError("query type totals", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var qt string
		var n int64
		if err := rows.Scan(&qt, &n); err != nil {
			return nil, errors.StoreError("scan type total row", err)
		}
		totals[qt] = n
	}
	return totals, rows.Err()
}

// LatencyTotals sums persisted latency bucket counts across all days.
func (s *SQLiteMetricsStore) LatencyTotals() (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(
		"SELECT bucket, SUM(count) FROM query_latency_stats GROUP BY bucket",
	)
	if err != nil {
		return nil, errors.StoreError("query latency totals", err)
	}
	defer rows.Close()

	totals := make(map[LatencyBucket]int64)
	for rows.Next() {
		var b string
		var n int64
		if err := rows.Scan(&b, &n); err != nil {
			return nil, errors.StoreError("scan latency total row", err)
		}
		totals[LatencyBucket(b)] = n
	}
	return totals, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteMetricsStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
