// Package retrieval finds corpus chunks for a free-text query or an occupation and
// re-ranks them with a blend of semantic and structural relevance.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"pathfinder-workers/internal/common/config"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/metrics"
	"pathfinder-workers/internal/embedding"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

const (
	ModeFreeText   = "free_text"
	ModeOccupation = "occupation"

	DegradedEmbedder = "embedder"
	DegradedIndex    = "index"
	DegradedTimeout  = "timeout"

	anchorSkills = 5
)

type Config struct {
	TopK             int
	Limit            int
	SemanticWeight   float64
	StructuralWeight float64
	Timeout          time.Duration
}

func DefaultConfig() Config {
	return Config{
		TopK:             20,
		Limit:            10,
		SemanticWeight:   0.7,
		StructuralWeight: 0.3,
		Timeout:          800 * time.Millisecond,
	}
}

func FromConfig(c config.RetrievalConfig) Config {
	return Config{
		TopK:             c.TopK,
		Limit:            c.ResultLimit,
		SemanticWeight:   c.SemanticWeight,
		StructuralWeight: c.StructuralWeight,
		Timeout:          config.GetDuration(c.Timeout),
	}
}

// Result is one de-duplicated entity with the provenance of its best chunk.
type Result struct {
	ChunkID    string            `json:"chunkId"`
	EntityType models.EntityType `json:"entityType"`
	EntityID   string            `json:"entityId"`
	SourceURL  string            `json:"sourceUrl,omitempty"`
	Semantic   float64           `json:"semanticScore"`
	Structural float64           `json:"structuralScore"`
	Score      float64           `json:"score"`
	Chunk      models.Chunk      `json:"-"`
}

type Response struct {
	Mode           string   `json:"mode"`
	Results        []Result `json:"results"`
	Degraded       bool     `json:"degraded"`
	DegradedReason string   `json:"degradedReason,omitempty"`
}

type Engine struct {
	cfg        Config
	embedder   embedding.Embedder
	index      VectorIndex
	keyword    KeywordSearcher
	structural StructuralRelevance
	logger     logger.Logger
}

// NewEngine wires the retrieval back-ends. A nil keyword searcher falls back to in-memory
// substring search and a nil structural scorer to the constant 0.5.
func NewEngine(cfg Config, embedder embedding.Embedder, index VectorIndex, keyword KeywordSearcher, structural StructuralRelevance, log logger.Logger) *Engine {
	if keyword == nil {
		keyword = NewMemoryKeywordSearcher()
	}
	if structural == nil {
		structural = ConstantRelevance{Value: 0.5}
	}
	return &Engine{
		cfg:        cfg,
		embedder:   embedder,
		index:      index,
		keyword:    keyword,
		structural: structural,
		logger:     log,
	}
}

// Search runs a free-text query.
func (e *Engine) Search(ctx context.Context, snap *reference.Snapshot, query string, f Filters) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("invalid query",
			apperrors.Field("query", "REQUIRED", "query text is required"))
	}
	return e.run(ctx, snap, ModeFreeText, query, "", f)
}

// SearchOccupation runs a query anchored on an occupation.
func (e *Engine) SearchOccupation(ctx context.Context, snap *reference.Snapshot, code string, f Filters) (*Response, error) {
	occ, ok := snap.Occupation(code)
	if !ok {
		return nil, apperrors.NewOccupationNotFoundError(code)
	}
	return e.run(ctx, snap, ModeOccupation, AnchorText(snap, occ), code, f)
}

// AnchorText is the occupation's description, or its title followed by its five strongest
// skills when the description is empty.
func AnchorText(snap *reference.Snapshot, occ *models.Occupation) string {
	if d := strings.TrimSpace(occ.Description); d != "" {
		return d
	}

	type weighted struct {
		id     string
		weight float64
	}
	skills := make([]weighted, 0, len(occ.Skills))
	for id, req := range occ.Skills {
		skills = append(skills, weighted{id: id, weight: req.Importance * req.Level})
	}
	sort.Slice(skills, func(i, j int) bool {
		if skills[i].weight != skills[j].weight {
			return skills[i].weight > skills[j].weight
		}
		return skills[i].id < skills[j].id
	})

	parts := []string{occ.Title}
	for i := 0; i < len(skills) && i < anchorSkills; i++ {
		if el, ok := snap.Skill(skills[i].id); ok {
			parts = append(parts, el.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) run(ctx context.Context, snap *reference.Snapshot, mode, text, anchor string, f Filters) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	hits, reason, err := e.semantic(ctx, snap, text, f)
	if err != nil && reason == "" {
		return nil, err
	}
	if err == nil {
		metrics.RetrievalDuration.WithLabelValues("semantic").Observe(time.Since(start).Seconds())
		return &Response{Mode: mode, Results: e.rerank(snap, anchor, hits, f)}, nil
	}

	metrics.RetrievalDegraded.WithLabelValues(reason).Inc()
	e.logger.Warn("vector retrieval degraded to keyword search", map[string]interface{}{
		"mode":   mode,
		"reason": reason,
		"error":  apperrors.NewRetrievalUnavailableError(err).Error(),
	})

	resp := &Response{Mode: mode, Degraded: true, DegradedReason: reason, Results: []Result{}}
	start = time.Now()
	hits, err = e.keyword.Search(ctx, snap, text, e.cfg.TopK, f)
	metrics.RetrievalDuration.WithLabelValues("keyword").Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Error("keyword fallback failed", map[string]interface{}{
			"searcher": e.keyword.Name(),
			"error":    err.Error(),
		})
		return resp, nil
	}
	resp.Results = e.rerank(snap, anchor, hits, f)
	return resp, nil
}

// semantic embeds the text and searches the vector index under the engine timeout. A
// non-empty reason marks a failure that should degrade; an empty reason with an error
// means the caller's context ended.
func (e *Engine) semantic(ctx context.Context, snap *reference.Snapshot, text string, f Filters) ([]Hit, string, error) {
	if e.embedder == nil || e.index == nil {
		return nil, DegradedIndex, errors.New("vector search is not configured")
	}

	tctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	type outcome struct {
		hits   []Hit
		reason string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		vec, err := e.embedder.Embed(tctx, text)
		if err != nil {
			done <- outcome{reason: DegradedEmbedder, err: apperrors.NewEmbeddingError(err)}
			return
		}
		hits, err := e.index.Search(tctx, snap, vec, e.cfg.TopK, f)
		if err != nil {
			done <- outcome{reason: DegradedIndex, err: err}
			return
		}
		done <- outcome{hits: hits}
	}()

	select {
	case out := <-done:
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if out.err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			out.reason = DegradedTimeout
		}
		return out.hits, out.reason, out.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		return nil, DegradedTimeout, tctx.Err()
	}
}

// rerank re-checks filters, blends scores, keeps the best chunk per entity and cuts to the limit.
func (e *Engine) rerank(snap *reference.Snapshot, anchor string, hits []Hit, f Filters) []Result {
	best := make(map[string]int)
	results := make([]Result, 0, len(hits))

	for _, h := range hits {
		c := h.Chunk
		if !f.Match(&c) {
			continue
		}

		programID := ""
		if c.EntityType == models.EntityProgram {
			programID = c.EntityID
		}
		sem := clamp01(h.Similarity)
		str := clamp01(e.structural.Score(snap, anchor, programID))

		r := Result{
			ChunkID:    c.ID,
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			SourceURL:  c.Metadata.SourceURL,
			Semantic:   sem,
			Structural: str,
			Score:      e.cfg.SemanticWeight*sem + e.cfg.StructuralWeight*str,
			Chunk:      c,
		}

		key := c.EntityKey()
		if i, ok := best[key]; ok {
			if better(r, results[i]) {
				results[i] = r
			}
			continue
		}
		best[key] = len(results)
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool { return better(results[i], results[j]) })
	if e.cfg.Limit > 0 && len(results) > e.cfg.Limit {
		results = results[:e.cfg.Limit]
	}
	return results
}

func better(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ChunkID < b.ChunkID
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
