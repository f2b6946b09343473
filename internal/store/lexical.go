package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// NewLexicalIndex creates a lexical index with the requested backend.
// An empty backend defaults to SQLite FTS5.
func NewLexicalIndex(backend LexicalBackend, basePath string, config LexicalConfig) (LexicalIndex, error) {
	switch backend {
	case LexicalBackendSQLite, "":
		path := basePath
		if path != "" {
			path = LexicalIndexPath(basePath, LexicalBackendSQLite)
		}
		return NewSQLiteLexicalIndex(path, config)
	case LexicalBackendBleve:
		path := basePath
		if path != "" {
			path = LexicalIndexPath(basePath, LexicalBackendBleve)
		}
		return NewBleveLexicalIndex(path, config)
	default:
		return nil, fmt.Errorf("unknown lexical backend: %q", backend)
	}
}

// DetectLexicalBackend inspects an existing data directory and returns
// the backend whose index files are present. Defaults to SQLite when
// neither exists.
func DetectLexicalBackend(dataDir string) LexicalBackend {
	if dirExists(filepath.Join(dataDir, "lexical.bleve")) {
		return LexicalBackendBleve
	}
	return LexicalBackendSQLite
}

// LexicalIndexPath returns the on-disk path for a backend's index
// under dataDir.
func LexicalIndexPath(dataDir string, backend LexicalBackend) string {
	switch backend {
	case LexicalBackendBleve:
		return filepath.Join(dataDir, "lexical.bleve")
	default:
		return filepath.Join(dataDir, "lexical.db")
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
