package retrieval

import (
	"context"
	"fmt"
	"strings"

	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/reference"
)

// MemoryKeywordSearcher scores chunks by the share of query terms found in their text.
type MemoryKeywordSearcher struct{}

func NewMemoryKeywordSearcher() *MemoryKeywordSearcher { return &MemoryKeywordSearcher{} }

func (MemoryKeywordSearcher) Name() string { return "substring" }

func (MemoryKeywordSearcher) Search(ctx context.Context, snap *reference.Snapshot, query string, k int, f Filters) ([]Hit, error) {
	terms := keywordTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	chunks := snap.Chunks()
	var hits []Hit
	for i := range chunks {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := &chunks[i]
		if !f.Match(c) {
			continue
		}
		text := strings.ToLower(c.Text)
		matched := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, Hit{Chunk: *c, Similarity: float64(matched) / float64(len(terms))})
	}

	sortHits(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// keywordTerms lowercases and de-duplicates the query words, dropping one-letter noise.
func keywordTerms(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// FallbackKeywordSearcher tries Primary and falls back to Secondary when it errors.
type FallbackKeywordSearcher struct {
	Primary   KeywordSearcher
	Secondary KeywordSearcher
	Logger    logger.Logger
}

func (s *FallbackKeywordSearcher) Name() string {
	return s.Primary.Name() + "+" + s.Secondary.Name()
}

func (s *FallbackKeywordSearcher) Search(ctx context.Context, snap *reference.Snapshot, query string, k int, f Filters) ([]Hit, error) {
	hits, err := s.Primary.Search(ctx, snap, query, k, f)
	if err == nil {
		return hits, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.Logger != nil {
		s.Logger.Warn("primary keyword search failed", map[string]interface{}{
			"searcher": s.Primary.Name(),
			"error":    err.Error(),
		})
	}
	hits, err2 := s.Secondary.Search(ctx, snap, query, k, f)
	if err2 != nil {
		return nil, fmt.Errorf("keyword search: %v; fallback: %w", err, err2)
	}
	return hits, nil
}
