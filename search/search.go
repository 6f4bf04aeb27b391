// Package search ranks photos against a query embedding, with a keyword
// fallback over stored descriptions.
package search

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"photofinder/database"
	"photofinder/types"

	"github.com/rs/zerolog"
)

// CosineSimilarity returns dot(a,b)/(|a||b|) computed in float64 and clamped
// to [-1, 1]. Vectors of unequal length, empty vectors and zero vectors have
// similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / math.Sqrt(na*nb)
	if math.IsNaN(s) {
		return 0
	}
	return max(-1, min(1, s))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func usable(n float64) bool {
	return n > 0 && !math.IsInf(n, 0) && !math.IsNaN(n)
}

// Query selects between the two search paths. A non-empty Embedding runs
// a semantic search in Model's space; otherwise Text is matched against
// descriptions.
type Query struct {
	Embedding []float32
	Model     string
	Text      string
	Limit     int
}

// Response holds ranked results and the stored items left out of ranking
type Response struct {
	Results []types.SearchResult
	Skipped []types.Skip
}

// Engine answers search queries from an embedding store
type Engine struct {
	store database.EmbeddingStore
	log   zerolog.Logger
}

// NewEngine creates a search engine over store
func NewEngine(store database.EmbeddingStore, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Search dispatches q to SemanticSearch or TextSearch
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	if len(q.Embedding) > 0 {
		return e.semantic(ctx, q.Embedding, q.Model, q.Limit)
	}
	results, err := e.TextSearch(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}
	return &Response{Results: results}, nil
}

// SemanticSearch returns up to limit photos of model ordered by descending
// cosine similarity to query, ties broken by lower photo id. Stored vectors
// that cannot be compared with the query are skipped.
func (e *Engine) SemanticSearch(ctx context.Context, query []float32, model string, limit int) ([]types.SearchResult, error) {
	resp, err := e.semantic(ctx, query, model, limit)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

type scored struct {
	photoID    int64
	similarity float64
}

func (e *Engine) semantic(ctx context.Context, query []float32, model string, limit int) (*Response, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", types.ErrInvalidInput, limit)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", types.ErrInvalidInput)
	}
	if !usable(norm(query)) {
		return nil, fmt.Errorf("%w: query embedding has no direction", types.ErrInvalidInput)
	}

	records, skipped, err := e.store.ListEmbeddings(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("load embeddings for %q: %w", model, err)
	}

	if len(records) > 0 && !anyDimension(records, len(query)) {
		return nil, fmt.Errorf("%w: no %q embeddings have dimension %d", types.ErrInvalidInput, model, len(query))
	}

	var hits []scored
	for _, r := range records {
		if len(r.Embedding) != len(query) {
			skipped = append(skipped, types.Skip{
				PhotoID: r.PhotoID,
				Reason:  fmt.Sprintf("dimension %d, query has %d", len(r.Embedding), len(query)),
			})
			continue
		}
		if !usable(norm(r.Embedding)) {
			skipped = append(skipped, types.Skip{PhotoID: r.PhotoID, Reason: "zero or non-finite vector"})
			continue
		}
		hits = append(hits, scored{photoID: r.PhotoID, similarity: CosineSimilarity(query, r.Embedding)})
	}
	if len(skipped) > 0 {
		e.log.Warn().Str("model", model).Int("skipped", len(skipped)).Msg("embeddings left out of search")
	}

	slices.SortFunc(hits, func(a, b scored) int {
		if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.photoID, b.photoID)
	})

	// photos removed since the embedding scan are dropped, so enrich batch
	// by batch until limit results are found
	results := make([]types.SearchResult, 0, min(limit, len(hits)))
	for start := 0; start < len(hits) && len(results) < limit; start += limit {
		found, err := e.enrich(ctx, hits[start:min(start+limit, len(hits))])
		if err != nil {
			return nil, err
		}
		results = append(results, found...)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return &Response{Results: results, Skipped: skipped}, nil
}

func anyDimension(records []types.EmbeddingRecord, dim int) bool {
	for _, r := range records {
		if len(r.Embedding) == dim {
			return true
		}
	}
	return false
}

func (e *Engine) enrich(ctx context.Context, hits []scored) ([]types.SearchResult, error) {
	if len(hits) == 0 {
		return []types.SearchResult{}, nil
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.photoID
	}
	photos, err := e.store.GetPhotos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load search results: %w", err)
	}
	byID := make(map[int64]types.PhotoRecord, len(photos))
	for _, p := range photos {
		byID[p.ID] = p
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		p, ok := byID[h.photoID]
		if !ok {
			continue
		}
		results = append(results, types.SearchResult{
			PhotoID:     p.ID,
			Path:        p.Path,
			Filename:    p.Filename,
			Similarity:  h.similarity,
			Description: p.Description,
		})
	}
	return results, nil
}

// TextSearch returns up to limit photos whose description contains every
// whitespace separated keyword of text, ignoring case, ordered by photo id.
// The results carry a NaN similarity.
func (e *Engine) TextSearch(ctx context.Context, text string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", types.ErrInvalidInput, limit)
	}
	keywords := strings.Fields(text)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: empty text query", types.ErrInvalidInput)
	}

	photos, err := e.store.SearchDescriptions(ctx, keywords, limit)
	if err != nil {
		return nil, fmt.Errorf("search descriptions: %w", err)
	}
	results := make([]types.SearchResult, len(photos))
	for i, p := range photos {
		results[i] = types.SearchResult{
			PhotoID:     p.ID,
			Path:        p.Path,
			Filename:    p.Filename,
			Similarity:  math.NaN(),
			Description: p.Description,
		}
	}
	return results, nil
}
