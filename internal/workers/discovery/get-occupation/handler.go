// internal/workers/discovery/get-occupation/handler.go
package getoccupation

import (
	"context"
	"sort"
	"strings"

	"pathfinder-workers/internal/common/camunda"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "get-occupation"

	onetSummaryURL = "https://www.onetonline.org/link/summary/"
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

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	code := strings.TrimSpace(input.OnetCode)
	if !models.ValidOnetCode(code) {
		return nil, apperrors.NewValidationError("invalid occupation code",
			apperrors.Field("onetCode", "INVALID_FORMAT", "expected NN-NNNN.NN, got %q", input.OnetCode))
	}

	snap, err := h.refs.Current()
	if err != nil {
		return nil, err
	}

	occ, ok := snap.Occupation(code)
	if !ok {
		return nil, apperrors.NewOccupationNotFoundError(code)
	}

	linked := snap.LinkedPrograms(code)
	if linked == nil {
		linked = []string{}
	}
	top := occ.TopCodes(3)

	return &Output{
		OnetCode:          occ.Code,
		Title:             occ.Title,
		Description:       occ.Description,
		MedianAnnualWage:  occ.MedianWage,
		EmploymentOutlook: occ.Outlook,
		JobZone:           occ.JobZone,
		InterestScores:    occ.InterestScores,
		InterestCodes:     top,
		RiasecCode:        models.JoinCodes(top),
		TopSkills:         topSkills(snap, occ, h.config.TopSkills),
		OnetURL:           onetSummaryURL + occ.Code,
		LinkedPrograms:    linked,
	}, nil
}

// topSkills orders the occupation's skills by importance*level, ties by element id.
func topSkills(snap *reference.Snapshot, occ *models.Occupation, n int) []Skill {
	out := make([]Skill, 0, len(occ.Skills))
	for id, req := range occ.Skills {
		el, ok := snap.Skill(id)
		if !ok {
			continue
		}
		out = append(out, Skill{
			ElementID:  id,
			Name:       el.Name,
			Category:   el.Category,
			Importance: req.Importance,
			Level:      req.Level,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		wi, wj := out[i].Importance*out[i].Level, out[j].Importance*out[j].Level
		if wi != wj {
			return wi > wj
		}
		return out[i].ElementID < out[j].ElementID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
