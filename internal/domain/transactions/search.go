package transactions

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
)

// searchDocument is the indexed projection of a transaction.
type searchDocument struct {
	Description string  `json:"description"`
	Merchant    string  `json:"merchant"`
	Account     string  `json:"account"`
	Amount      float64 `json:"amount"`
}

// SearchHit pairs a transaction id with its relevance score.
type SearchHit struct {
	ID    uuid.UUID
	Score float64
}

// SearchIndex provides full-text search over descriptions and merchants.
type SearchIndex struct {
	index   bleve.Index
	indexMu sync.RWMutex
}

// NewSearchIndex creates or opens the index. An empty path keeps it in memory.
func NewSearchIndex(path string) (*SearchIndex, error) {
	indexMapping := buildIndexMapping()

	var index bleve.Index
	var err error
	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, indexMapping)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open search index: %w", err)
	}

	return &SearchIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("merchant", textFieldMapping)
	docMapping.AddFieldMappingsAt("account", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("amount", bleve.NewNumericFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Index adds or replaces transactions in the index.
func (si *SearchIndex) Index(txns ...Transaction) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	batch := si.index.NewBatch()
	for _, t := range txns {
		doc := searchDocument{
			Description: t.Description,
			Merchant:    t.Merchant,
			Account:     t.Account,
			Amount:      float64(t.AmountCents) / 100,
		}
		if err := batch.Index(t.ID.String(), doc); err != nil {
			return fmt.Errorf("failed to index transaction: %w", err)
		}
	}
	return si.index.Batch(batch)
}

// Remove drops transactions from the index.
func (si *SearchIndex) Remove(ids ...uuid.UUID) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	batch := si.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id.String())
	}
	return si.index.Batch(batch)
}

// Search runs a query-string search and returns ranked hits.
func (si *SearchIndex) Search(query string, limit int) ([]SearchHit, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	result, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		hits = append(hits, SearchHit{ID: id, Score: hit.Score})
	}
	return hits, nil
}

// Close releases the underlying index.
func (si *SearchIndex) Close() error {
	return si.index.Close()
}
