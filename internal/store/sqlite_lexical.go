package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

// SQLiteLexicalIndex implements LexicalIndex using SQLite FTS5.
// WAL mode allows concurrent multi-process access.
type SQLiteLexicalIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	closed    bool
	stopWords map[string]struct{}
}

var _ LexicalIndex = (*SQLiteLexicalIndex)(nil)

// validateSQLiteIntegrity checks if a SQLite FTS5 index is valid before
// opening. Returns nil if valid (or missing), error describing
// corruption if not.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='fts_chunks'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_chunks' missing")
	}

	return nil
}

// NewSQLiteLexicalIndex creates a new FTS5-backed lexical index.
// If path is empty, creates an in-memory index for testing.
func NewSQLiteLexicalIndex(path string, config LexicalConfig) (*SQLiteLexicalIndex, error) {
	if path != "" {
		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, errors.New(errors.ErrCodeStoreCorrupt,
					fmt.Sprintf("lexical index corrupted at %s and cannot remove: %v", path, removeErr), validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	// FTS5 tables cannot have indexes, so tenant filtering uses an
	// UNINDEXED column plus a plain doc_ids table for counting.
	schema := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
			doc_id UNINDEXED,
			tenant_id UNINDEXED,
			content,
			tokenize='unicode61'
		)`,
		`CREATE TABLE IF NOT EXISTS doc_ids (
			doc_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			PRIMARY KEY (tenant_id, doc_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.StoreError("failed to create lexical schema", err)
		}
	}

	stopWords := config.StopWords
	if stopWords == nil {
		stopWords = DefaultStopWords
	}

	return &SQLiteLexicalIndex{
		db:        db,
		path:      path,
		stopWords: BuildStopWordMap(stopWords),
	}, nil
}

// Index adds documents to the index, replacing existing entries.
func (s *SQLiteLexicalIndex) Index(ctx context.Context, docs []*LexicalDocument) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("lexical index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	// FTS5 doesn't support REPLACE, delete existing entries first
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_chunks WHERE doc_id = ? AND tenant_id = ?`)
	if err != nil {
		return errors.StoreError("failed to prepare delete", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_chunks (doc_id, tenant_id, content) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.StoreError("failed to prepare insert", err)
	}
	defer insertStmt.Close()

	idStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO doc_ids (doc_id, tenant_id) VALUES (?, ?)`)
	if err != nil {
		return errors.StoreError("failed to prepare id insert", err)
	}
	defer idStmt.Close()

	for _, doc := range docs {
		if doc.TenantID == "" {
			return errors.ValidationError(fmt.Sprintf("document %s has no tenant", doc.ID), nil)
		}
		tokens := Tokenize(doc.Text)
		tokens = FilterStopWords(tokens, s.stopWords)
		processed := strings.Join(tokens, " ")

		if _, err := deleteStmt.ExecContext(ctx, doc.ID, doc.TenantID); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to delete existing document %s", doc.ID), err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, doc.TenantID, processed); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
		if _, err := idStmt.ExecContext(ctx, doc.ID, doc.TenantID); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to track document ID %s", doc.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit index batch", err)
	}
	return nil
}

// Search returns documents matching query for the tenant, scored by BM25.
// The query is tokenized the same way as indexed content.
func (s *SQLiteLexicalIndex) Search(ctx context.Context, tenantID, queryStr string, limit int) ([]*LexicalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("lexical index is closed", nil)
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	tokens := Tokenize(queryStr)
	tokens = FilterStopWords(tokens, s.stopWords)
	if len(tokens) == 0 {
		return []*LexicalResult{}, nil
	}

	// FTS5 treats space-separated terms as AND. OR them instead so a
	// query only partially covered by a chunk still matches; bm25()
	// ranks fuller matches higher anyway.
	processedQuery := strings.Join(tokens, " OR ")

	// bm25() returns negative values where lower = better match
	query := `
		SELECT doc_id, bm25(fts_chunks) as score
		FROM fts_chunks
		WHERE content MATCH ? AND tenant_id = ?
		ORDER BY score
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, processedQuery, tenantID, limit)
	if err != nil {
		// FTS5 errors on invalid match syntax, treat as no results
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*LexicalResult{}, nil
		}
		return nil, errors.StoreError("lexical search failed", err)
	}
	defer rows.Close()

	var results []*LexicalResult
	for rows.Next() {
		var docID string
		var score float64
		if err := rows.Scan(&docID, &score); err != nil {
			return nil, errors.StoreError("failed to scan result", err)
		}
		results = append(results, &LexicalResult{
			ID:           docID,
			Score:        -score, // negate so higher = better
			MatchedTerms: tokens,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("failed to iterate results", err)
	}

	return results, nil
}

// Delete removes documents from the index.
func (s *SQLiteLexicalIndex) Delete(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("lexical index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE doc_id = ? AND tenant_id = ?`, id, tenantID); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to delete document %s", id), err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM doc_ids WHERE doc_id = ? AND tenant_id = ?`, id, tenantID); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to untrack document %s", id), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit delete", err)
	}
	return nil
}

// Count returns the number of indexed documents for the tenant.
func (s *SQLiteLexicalIndex) Count(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errors.StoreError("lexical index is closed", nil)
	}

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_ids WHERE tenant_id = ?`, tenantID).Scan(&n)
	if err != nil {
		return 0, errors.StoreError("failed to count documents", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteLexicalIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
