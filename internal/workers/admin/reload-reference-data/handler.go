// internal/workers/admin/reload-reference-data/handler.go
package reloadreferencedata

import (
	"context"
	"time"

	"pathfinder-workers/internal/common/camunda"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/reference"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "reload-reference-data"
)

type Handler struct {
	config *Config
	refs   *reference.Store
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, refs *reference.Store, v *validation.Validator, obs camunda.JobObserver, log logger.Logger) *Handler {
	runner := camunda.NewRunner(TaskType, config.Timeout, v, obs, log)
	return &Handler{
		config: config,
		refs:   refs,
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

// Execute builds a fresh snapshot and swaps it in. In-flight requests keep the snapshot they pinned.
func (h *Handler) Execute(ctx context.Context, _ *Input) (*Output, error) {
	snap, err := h.refs.Reload(ctx)
	if err != nil {
		return nil, err
	}

	stats := snap.Stats()
	return &Output{
		Version:     stats.Version,
		LoadedAt:    stats.LoadedAt.UTC().Format(time.RFC3339),
		Source:      stats.Source,
		Occupations: stats.Occupations,
		Skills:      stats.Skills,
		Programs:    stats.Programs,
		Chunks:      stats.Chunks,
	}, nil
}
