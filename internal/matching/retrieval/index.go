package retrieval

import (
	"context"
	"sort"

	"pathfinder-workers/internal/embedding"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

// Hit is a candidate chunk with its raw similarity to the query.
type Hit struct {
	Chunk      models.Chunk
	Similarity float64
}

// VectorIndex finds the k nearest chunks to a query embedding. Implementations apply
// filters inside the search so that k counts only eligible chunks.
type VectorIndex interface {
	Search(ctx context.Context, snap *reference.Snapshot, query []float32, k int, f Filters) ([]Hit, error)
	Name() string
}

// KeywordSearcher is the degraded path used when vector search is unavailable.
type KeywordSearcher interface {
	Search(ctx context.Context, snap *reference.Snapshot, query string, k int, f Filters) ([]Hit, error)
	Name() string
}

// MemoryIndex does exact cosine search over the snapshot's chunk embeddings.
type MemoryIndex struct{}

func NewMemoryIndex() *MemoryIndex { return &MemoryIndex{} }

func (MemoryIndex) Name() string { return "memory" }

func (MemoryIndex) Search(ctx context.Context, snap *reference.Snapshot, query []float32, k int, f Filters) ([]Hit, error) {
	chunks := snap.Chunks()
	hits := make([]Hit, 0, k)

	for i := range chunks {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := &chunks[i]
		if len(c.Embedding) == 0 || !f.Match(c) {
			continue
		}
		hits = append(hits, Hit{Chunk: *c, Similarity: embedding.CosineSimilarity(query, c.Embedding)})
	}

	sortHits(hits)
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}
