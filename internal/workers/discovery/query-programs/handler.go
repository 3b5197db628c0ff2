// internal/workers/discovery/query-programs/handler.go
package queryprograms

import (
	"context"

	"pathfinder-workers/internal/common/camunda"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/matching/assemble"
	"pathfinder-workers/internal/matching/retrieval"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "query-programs"

	previewRunes = 160
)

type Handler struct {
	config *Config
	refs   *reference.Store
	engine *retrieval.Engine
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, refs *reference.Store, engine *retrieval.Engine, v *validation.Validator, obs camunda.JobObserver, log logger.Logger) *Handler {
	runner := camunda.NewRunner(TaskType, config.Timeout, v, obs, log)
	return &Handler{
		config: config,
		refs:   refs,
		engine: engine,
		runner: runner,
		logger: runner.Logger,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	j := h.runner.Begin(client, job)

	var input Input
	if err := j.Decode(&input); err != nil {
		j.Fail(err)
		return
	}

	output, err := h.Execute(j.Ctx, &input)
	if err != nil {
		j.Fail(err)
		return
	}
	j.Complete(output)
}

// Execute runs a free-text search. Program results carry the hydrated program record.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	entityType := models.EntityProgram
	if input.EntityType != "" {
		et, ok := models.ParseEntityType(input.EntityType)
		if !ok {
			return nil, apperrors.NewValidationError("invalid entity type",
				apperrors.Field("entityType", "INVALID_ENTITY_TYPE", "unknown entity type %q", input.EntityType))
		}
		entityType = et
	}
	if d := input.Filters.MaxDuration; d != nil && *d <= 0 {
		return nil, apperrors.NewValidationError("invalid filters",
			apperrors.Field("filters.maxDuration", "OUT_OF_RANGE", "must be positive"))
	}

	snap, err := h.refs.Current()
	if err != nil {
		return nil, err
	}

	resp, err := h.engine.Search(ctx, snap, input.Query, retrieval.Filters{
		MaxDuration: input.Filters.MaxDuration,
		Locations:   input.Filters.Location,
		DegreeTypes: input.Filters.DegreeType,
		EntityType:  entityType,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		item := Result{
			ChunkID:         r.ChunkID,
			EntityType:      string(r.EntityType),
			EntityID:        r.EntityID,
			SourceURL:       r.SourceURL,
			Score:           r.Score,
			SemanticScore:   r.Semantic,
			StructuralScore: r.Structural,
			TextPreview:     preview(r.Chunk.Text),
		}
		if p, ok := assemble.Hydrate(snap, r, h.config.HomeLocations); ok {
			item.Program = &p
		}
		results = append(results, item)
	}

	h.logger.Info("Programs queried", map[string]interface{}{
		"results":  len(results),
		"degraded": resp.Degraded,
		"filtered": !input.Filters.isZero(),
	})

	return &Output{
		Results:        results,
		Degraded:       resp.Degraded,
		DegradedReason: resp.DegradedReason,
	}, nil
}

func (f Filters) isZero() bool {
	return f.MaxDuration == nil && len(f.Location) == 0 && len(f.DegreeType) == 0
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
