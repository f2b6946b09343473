package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

// SQLiteChunkStore implements ChunkStore on SQLite with WAL mode for
// concurrent access.
type SQLiteChunkStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ ChunkStore = (*SQLiteChunkStore)(nil)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	document_id TEXT NOT NULL,
	parent_id   TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(tenant_id, parent_id) WHERE parent_id != '';
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(tenant_id, document_id);
`

// NewSQLiteChunkStore opens (or creates) a chunk store at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteChunkStore(path string) (*SQLiteChunkStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		_ = db.Close()
		return nil, errors.StoreError("failed to create chunk schema", err)
	}

	return &SQLiteChunkStore{db: db, path: path}, nil
}

// openSQLite opens a SQLite database with the pragmas shared by all
// SQLite-backed stores.
func openSQLite(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.StoreError(fmt.Sprintf("failed to create directory %s", filepath.Dir(path)), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.StoreError("failed to open database", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.StoreError("failed to set pragma", err)
		}
	}

	return db, nil
}

// Upsert inserts or replaces chunks. Each child's ParentID must
// reference a chunk already stored or included in the same batch, and
// that parent must itself be flat: the hierarchy is single-level, so a
// grandchild chain fails the whole batch before anything is written.
func (s *SQLiteChunkStore) Upsert(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("chunk store is closed", nil)
	}

	inBatch := make(map[string]map[string]*Chunk) // tenant -> id -> chunk
	for _, c := range chunks {
		if c.ID == "" || c.TenantID == "" {
			return errors.ValidationError("chunk id and tenant_id are required", nil)
		}
		byID, ok := inBatch[c.TenantID]
		if !ok {
			byID = make(map[string]*Chunk)
			inBatch[c.TenantID] = byID
		}
		byID[c.ID] = c
	}

	for _, c := range chunks {
		if c.ParentID == "" {
			continue
		}
		if c.ParentID == c.ID {
			return errors.New(errors.ErrCodeParentInvalid, fmt.Sprintf("chunk %s references itself as parent", c.ID), nil)
		}
		// A batch entry supersedes the stored row (INSERT OR REPLACE),
		// so it decides whether the parent is flat.
		if parent, ok := inBatch[c.TenantID][c.ParentID]; ok {
			if parent.ParentID != "" {
				return errors.New(errors.ErrCodeParentInvalid,
					fmt.Sprintf("chunk %s references parent %s which is itself a child of %s", c.ID, c.ParentID, parent.ParentID), nil)
			}
			continue
		}
		exists, parentOfParent, err := s.parentRowLocked(ctx, c.TenantID, c.ParentID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New(errors.ErrCodeParentInvalid, fmt.Sprintf("chunk %s references unknown parent %s", c.ID, c.ParentID), nil)
		}
		if parentOfParent != "" {
			return errors.New(errors.ErrCodeParentInvalid,
				fmt.Sprintf("chunk %s references parent %s which is itself a child of %s", c.ID, c.ParentID, parentOfParent), nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, tenant_id, document_id, parent_id, text, token_count, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.StoreError("failed to prepare upsert", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range chunks {
		meta := "{}"
		if len(c.Metadata) > 0 {
			raw, err := json.Marshal(c.Metadata)
			if err != nil {
				return errors.StoreError(fmt.Sprintf("failed to encode metadata for chunk %s", c.ID), err)
			}
			meta = string(raw)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.TenantID, c.DocumentID, c.ParentID, c.Text, c.TokenCount, meta,
			createdAt.UnixMilli(), now.UnixMilli()); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to upsert chunk %s", c.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit upsert", err)
	}
	return nil
}

// parentRowLocked looks up a prospective parent and reports whether it
// exists and what its own parent_id is.
func (s *SQLiteChunkStore) parentRowLocked(ctx context.Context, tenantID, id string) (bool, string, error) {
	var parentID string
	err := s.db.QueryRowContext(ctx,
		`SELECT parent_id FROM chunks WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&parentID)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", errors.StoreError("failed to check chunk existence", err)
	}
	return true, parentID, nil
}

// Get returns a chunk by ID.
func (s *SQLiteChunkStore) Get(ctx context.Context, tenantID, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("chunk store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, document_id, parent_id, text, token_count, metadata, created_at, updated_at
		FROM chunks WHERE tenant_id = ? AND id = ?`, tenantID, id)

	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeChunkNotFound, fmt.Sprintf("chunk %s not found", id), nil)
	}
	if err != nil {
		return nil, errors.StoreError("failed to load chunk", err)
	}
	return c, nil
}

// GetMany returns chunks for the given IDs, skipping any that do not exist.
func (s *SQLiteChunkStore) GetMany(ctx context.Context, tenantID string, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.StoreError("chunk store is closed", nil)
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, tenant_id, document_id, parent_id, text, token_count, metadata, created_at, updated_at
		FROM chunks WHERE tenant_id = ? AND id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, errors.StoreError("failed to load chunks", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, errors.StoreError("failed to scan chunk", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError("failed to iterate chunks", err)
	}

	// Preserve input order
	result := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// Delete removes chunks and any children pointing at them.
func (s *SQLiteChunkStore) Delete(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.StoreError("chunk store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE tenant_id = ? AND (id = ? OR parent_id = ?)`,
			tenantID, id, id); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to delete chunk %s", id), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit delete", err)
	}
	return nil
}

// HasParents reports whether the tenant's corpus is hierarchical.
func (s *SQLiteChunkStore) HasParents(ctx context.Context, tenantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, errors.StoreError("chunk store is closed", nil)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM chunks WHERE tenant_id = ? AND parent_id != '')`, tenantID).Scan(&exists)
	if err != nil {
		return false, errors.StoreError("failed to probe for parents", err)
	}
	return exists, nil
}

// Count returns the number of chunks stored for the tenant.
func (s *SQLiteChunkStore) Count(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errors.StoreError("chunk store is closed", nil)
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE tenant_id = ?`, tenantID).Scan(&n)
	if err != nil {
		return 0, errors.StoreError("failed to count chunks", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var meta string
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.TenantID, &c.DocumentID, &c.ParentID, &c.Text,
		&c.TokenCount, &meta, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	c.CreatedAt = time.UnixMilli(createdAt)
	c.UpdatedAt = time.UnixMilli(updatedAt)
	return &c, nil
}
