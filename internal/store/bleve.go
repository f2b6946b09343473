package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

const (
	// textTokenizerName is the name of our word tokenizer.
	textTokenizerName = "text_tokenizer"

	// textStopFilterName is the name of our stop word filter.
	textStopFilterName = "text_stop_filter"

	// textAnalyzerName is the name of our analyzer.
	textAnalyzerName = "text_analyzer"

	// tenantAnalyzerName indexes tenant IDs as single keyword terms.
	tenantAnalyzerName = "keyword"
)

func init() {
	registry.RegisterTokenizer(textTokenizerName, textTokenizerConstructor)
	registry.RegisterTokenFilter(textStopFilterName, textStopFilterConstructor)
}

// BleveLexicalIndex implements LexicalIndex using Bleve full-text search.
type BleveLexicalIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	path      string
	closed    bool
	stopWords map[string]struct{}
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// bleveChunkDoc is the document shape Bleve indexes.
type bleveChunkDoc struct {
	TenantID string `json:"tenant_id"`
	Content  string `json:"content"`
}

// isCorruptionError reports whether a Bleve open error indicates a
// corrupted index that should be cleared and rebuilt.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected") ||
		strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveLexicalIndex creates a Bleve-backed lexical index.
// If path is empty, creates an in-memory index for testing.
func NewBleveLexicalIndex(path string, config LexicalConfig) (*BleveLexicalIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, errors.StoreError("failed to create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return nil, errors.StoreError(fmt.Sprintf("failed to create directory %s", dir), mkErr)
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("lexical_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeStoreCorrupt,
					fmt.Sprintf("lexical index corrupted, cannot clear: %v", removeErr), err)
			}
			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, please reindex"))

			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.StoreError("failed to create/open index", err)
	}

	stopWords := config.StopWords
	if stopWords == nil {
		stopWords = DefaultStopWords
	}

	return &BleveLexicalIndex{
		index:     idx,
		path:      path,
		stopWords: BuildStopWordMap(stopWords),
	}, nil
}

// createIndexMapping builds the Bleve mapping: analyzed content field
// plus an exact-match tenant field.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": textTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			textStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = textAnalyzerName

	tenantField := bleve.NewTextFieldMapping()
	tenantField.Analyzer = tenantAnalyzerName
	tenantField.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("tenant_id", tenantField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = textAnalyzerName

	return indexMapping, nil
}

// Index adds documents to the index, replacing existing entries.
func (b *BleveLexicalIndex) Index(ctx context.Context, docs []*LexicalDocument) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.StoreError("lexical index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if doc.TenantID == "" {
			return errors.ValidationError(fmt.Sprintf("document %s has no tenant", doc.ID), nil)
		}
		d := bleveChunkDoc{TenantID: doc.TenantID, Content: doc.Text}
		if err := batch.Index(doc.ID, d); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to index document %s", doc.ID), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return errors.StoreError("failed to execute batch", err)
	}
	return nil
}

// Search returns documents matching query for the tenant, scored by BM25.
func (b *BleveLexicalIndex) Search(ctx context.Context, tenantID, queryStr string, limit int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.StoreError("lexical index is closed", nil)
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	tenantQuery := bleve.NewTermQuery(tenantID)
	tenantQuery.SetField("tenant_id")

	conjunction := bleve.NewConjunctionQuery(matchQuery, tenantQuery)

	searchRequest := bleve.NewSearchRequest(conjunction)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // for matched terms

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, errors.StoreError("lexical search failed", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// extractMatchedTerms pulls the matched content terms out of a hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	fieldLocs, ok := hit.Locations["content"]
	if !ok {
		return nil
	}
	terms := make([]string, 0, len(fieldLocs))
	for term := range fieldLocs {
		terms = append(terms, term)
	}
	return terms
}

// Delete removes documents from the index.
func (b *BleveLexicalIndex) Delete(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.StoreError("lexical index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.StoreError("failed to delete documents", err)
	}
	return nil
}

// Count returns the number of indexed documents for the tenant.
func (b *BleveLexicalIndex) Count(ctx context.Context, tenantID string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, errors.StoreError("lexical index is closed", nil)
	}

	tenantQuery := bleve.NewTermQuery(tenantID)
	tenantQuery.SetField("tenant_id")

	req := bleve.NewSearchRequest(tenantQuery)
	req.Size = 0 // only the total is needed

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, errors.StoreError("failed to count documents", err)
	}
	return int(result.Total), nil
}

// Close closes the index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// textTokenizerConstructor creates the word tokenizer for Bleve.
func textTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTextTokenizer{}, nil
}

// bleveTextTokenizer implements analysis.Tokenizer using the shared
// word tokenization rules.
type bleveTextTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTextTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := Tokenize(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// textStopFilterConstructor creates the stop word filter for Bleve.
func textStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveTextStopFilter{
		stopWords: BuildStopWordMap(DefaultStopWords),
	}, nil
}

// bleveTextStopFilter implements analysis.TokenFilter for stop words.
type bleveTextStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveTextStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
