package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lexicalBackends lets every test run against both implementations.
func lexicalBackends(t *testing.T) map[string]LexicalIndex {
	t.Helper()

	sqlite, err := NewSQLiteLexicalIndex("", LexicalConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	bleve, err := NewBleveLexicalIndex("", LexicalConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bleve.Close() })

	return map[string]LexicalIndex{
		"sqlite": sqlite,
		"bleve":  bleve,
	}
}

func TestLexicalIndex_IndexAndSearch(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			docs := []*LexicalDocument{
				{ID: "1", TenantID: "acme", Text: "how to reset your password"},
				{ID: "2", TenantID: "acme", Text: "configuring password policies"},
				{ID: "3", TenantID: "acme", Text: "billing and invoices"},
			}
			require.NoError(t, idx.Index(context.Background(), docs))

			results, err := idx.Search(context.Background(), "acme", "password", 10)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Greater(t, results[0].Score, 0.0)
		})
	}
}

func TestLexicalIndex_TenantIsolation(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			docs := []*LexicalDocument{
				{ID: "a1", TenantID: "acme", Text: "deployment pipeline troubleshooting"},
				{ID: "g1", TenantID: "globex", Text: "deployment rollback process"},
			}
			require.NoError(t, idx.Index(context.Background(), docs))

			results, err := idx.Search(context.Background(), "acme", "deployment", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "a1", results[0].ID)

			results, err = idx.Search(context.Background(), "globex", "deployment", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "g1", results[0].ID)
		})
	}
}

func TestLexicalIndex_EmptyQuery(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			results, err := idx.Search(context.Background(), "acme", "   ", 10)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestLexicalIndex_NoMatches(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(context.Background(), []*LexicalDocument{
				{ID: "1", TenantID: "acme", Text: "vacation policy overview"},
			}))

			results, err := idx.Search(context.Background(), "acme", "kubernetes", 10)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestLexicalIndex_Reindex(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(context.Background(), []*LexicalDocument{
				{ID: "1", TenantID: "acme", Text: "original topic about kafka"},
			}))
			require.NoError(t, idx.Index(context.Background(), []*LexicalDocument{
				{ID: "1", TenantID: "acme", Text: "replaced topic about postgres"},
			}))

			results, err := idx.Search(context.Background(), "acme", "kafka", 10)
			require.NoError(t, err)
			assert.Empty(t, results)

			results, err = idx.Search(context.Background(), "acme", "postgres", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)

			n, err := idx.Count(context.Background(), "acme")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestLexicalIndex_Delete(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Index(context.Background(), []*LexicalDocument{
				{ID: "1", TenantID: "acme", Text: "incident response runbook"},
				{ID: "2", TenantID: "acme", Text: "incident postmortem template"},
			}))
			require.NoError(t, idx.Delete(context.Background(), "acme", []string{"1"}))

			results, err := idx.Search(context.Background(), "acme", "incident", 10)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "2", results[0].ID)
		})
	}
}

func TestLexicalIndex_MissingTenantRejected(t *testing.T) {
	for name, idx := range lexicalBackends(t) {
		t.Run(name, func(t *testing.T) {
			err := idx.Index(context.Background(), []*LexicalDocument{
				{ID: "1", Text: "no tenant set"},
			})
			require.Error(t, err)
		})
	}
}

func TestSQLiteLexicalIndex_PartialTermCoverage(t *testing.T) {
	idx, err := NewSQLiteLexicalIndex("", LexicalConfig{})
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Index(context.Background(), []*LexicalDocument{
		{ID: "1", TenantID: "acme", Text: "password reset instructions"},
	}))

	// A query with terms absent from the document still matches on the
	// terms that are present.
	results, err := idx.Search(context.Background(), "acme", "password reset zanzibar", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestNewLexicalIndex_Factory(t *testing.T) {
	tests := []struct {
		backend LexicalBackend
		wantErr bool
	}{
		{LexicalBackendSQLite, false},
		{LexicalBackendBleve, false},
		{"", false},
		{"elasticsearch", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			idx, err := NewLexicalIndex(tt.backend, "", LexicalConfig{})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, idx.Close())
		})
	}
}
