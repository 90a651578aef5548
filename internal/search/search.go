package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"cadventory/internal/database"
	"cadventory/internal/logging"
)

// DefaultLimit caps results when the caller passes no limit.
const DefaultLimit = 50

// Index is a bleve in-memory index of models, keyed by model id.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

type modelDocument struct {
	ShortName string `json:"short_name"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Path      string `json:"path"`
	Library   string `json:"library"`
	Tags      string `json:"tags"`
}

// Hit is one search result.
type Hit struct {
	ModelID int64   `json:"modelId"`
	Score   float64 `json:"score"`
}

// New creates an empty index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"title", "author", "path", "tags"} {
		fm := bleve.NewTextFieldMapping()
		fm.Store = false
		fm.IncludeInAll = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// Exact lower-cased short name for prefix matching, plus an analyzed
	// copy in _all.
	short := bleve.NewKeywordFieldMapping()
	short.Store = false
	short.IncludeInAll = true
	docMapping.AddFieldMappingsAt("short_name", short)

	lib := bleve.NewKeywordFieldMapping()
	lib.Store = false
	lib.IncludeInAll = false
	docMapping.AddFieldMappingsAt("library", lib)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

var pathSeparators = strings.NewReplacer("/", " ", "\\", " ", "_", " ", ".", " ", "-", " ")

func newDocument(m database.Model, tags []string) modelDocument {
	return modelDocument{
		ShortName: strings.ToLower(m.ShortName),
		Title:     m.Title,
		Author:    m.Author,
		Path:      pathSeparators.Replace(m.FilePath),
		Library:   m.LibraryName,
		Tags:      strings.Join(tags, " "),
	}
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// IndexModel adds or replaces one model.
func (ix *Index) IndexModel(m database.Model, tags []string) error {
	doc := newDocument(m, tags)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.index.Index(docID(m.ID), doc); err != nil {
		return fmt.Errorf("indexing model %d: %w", m.ID, err)
	}
	return nil
}

// Remove drops a model from the index.
func (ix *Index) Remove(id int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.index.Delete(docID(id)); err != nil {
		return fmt.Errorf("removing model %d: %w", id, err)
	}
	return nil
}

// Rebuild replaces the index contents with every model in db.
func (ix *Index) Rebuild(ctx context.Context, db *database.Database) error {
	models, err := db.ListModels(ctx, database.ModelFilter{})
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	tags, err := db.GetTagsForModels(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating bleve index: %w", err)
	}
	batch := fresh.NewBatch()
	for _, m := range models {
		if err := batch.Index(docID(m.ID), newDocument(m, tags[m.ID])); err != nil {
			return fmt.Errorf("indexing model %d: %w", m.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		return fmt.Errorf("applying index batch: %w", err)
	}

	ix.mu.Lock()
	old := ix.index
	ix.index = fresh
	ix.mu.Unlock()

	if err := old.Close(); err != nil {
		logging.Debug("Closing previous search index: %v", err)
	}
	logging.Debug("Search index rebuilt with %d models", len(models))
	return nil
}

// Len returns the number of indexed models.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n, err := ix.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// Search runs q and returns hits in descending score order.
func (ix *Index) Search(q string, limit int) ([]Hit, uint64, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequest(buildQuery(q))
	req.Size = limit

	ix.mu.RLock()
	res, err := ix.index.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{ModelID: id, Score: h.Score})
	}
	return hits, res.Total, nil
}

// Close releases the index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index.Close()
}

func buildQuery(q string) query.Query {
	if strings.HasPrefix(q, "/") && strings.HasSuffix(q, "/") && len(q) > 2 {
		return bleve.NewRegexpQuery(strings.ToLower(q[1 : len(q)-1]))
	}
	if strings.HasPrefix(q, "\"") && strings.HasSuffix(q, "\"") && len(q) > 2 {
		return bleve.NewMatchPhraseQuery(q[1 : len(q)-1])
	}
	if strings.Contains(q, ":") {
		return bleve.NewQueryStringQuery(q)
	}

	match := bleve.NewMatchQuery(q)
	prefix := bleve.NewPrefixQuery(strings.ToLower(q))
	prefix.SetField("short_name")
	return bleve.NewDisjunctionQuery(match, prefix)
}
