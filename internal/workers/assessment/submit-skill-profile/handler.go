// internal/workers/assessment/submit-skill-profile/handler.go
package submitskillprofile

import (
	"context"
	"errors"
	"time"

	"pathfinder-workers/internal/common/camunda"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/matching/assemble"
	"pathfinder-workers/internal/matching/occupation"
	"pathfinder-workers/internal/matching/profile"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "submit-skill-profile"
)

type Handler struct {
	config    *Config
	refs      *reference.Store
	store     session.Store
	resolver  *profile.Resolver
	matcher   *occupation.Matcher
	assembler *assemble.Assembler
	runner    *camunda.Runner
	logger    logger.Logger
}

func NewHandler(
	config *Config,
	refs *reference.Store,
	store session.Store,
	resolver *profile.Resolver,
	assembler *assemble.Assembler,
	v *validation.Validator,
	obs camunda.JobObserver,
	log logger.Logger,
) *Handler {
	runner := camunda.NewRunner(TaskType, config.Timeout, v, obs, log)
	return &Handler{
		config:    config,
		refs:      refs,
		store:     store,
		resolver:  resolver,
		matcher:   occupation.NewMatcher(config.Matching, runner.Logger),
		assembler: assembler,
		runner:    runner,
		logger:    runner.Logger,
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

// Execute resolves the rating vector, ranks the triaged pool and finalizes the assessment.
// The assessment is written only after ranking succeeds, so a failed run can be retried.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tri, err := h.store.GetTriage(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if _, err := h.store.GetAssessment(ctx, input.SessionID); err == nil {
		return nil, apperrors.NewAssessmentFinalizedError(input.SessionID)
	} else if !errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, err
	}

	interestProfile, err := h.store.GetInterest(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	snap, err := h.refs.Current()
	if err != nil {
		return nil, err
	}

	res, err := h.resolver.Resolve(ctx, snap, profile.Input{
		FilteredSkillIDs:   tri.FilteredSkillIDs,
		PanelInitialScores: input.PanelInitialScores,
		RefinementRatings:  input.RefinementRatings,
		NarrativeEvidence:  input.NarrativeEvidence,
	})
	if err != nil {
		return nil, err
	}

	matches, err := h.matcher.Rank(snap, interestProfile.Scores, res.Vector, tri.OccupationPool, input.TopN)
	if err != nil {
		return nil, err
	}

	ranked, degraded, err := h.assembler.Assemble(ctx, snap, matches)
	if err != nil {
		return nil, err
	}

	if err := h.store.FinalizeAssessment(ctx, &models.SkillAssessment{
		SessionID:          input.SessionID,
		OccupationPool:     tri.OccupationPool,
		FilteredSkillIDs:   tri.FilteredSkillIDs,
		PanelInitialScores: input.PanelInitialScores,
		NarrativeEvidence:  input.NarrativeEvidence,
		RefinementRatings:  res.RefinementRatings,
		FinalRatingVector:  res.Vector,
		FinalRatingString:  res.RatingString,
		Justification:      res.Justification,
		CompletedAt:        time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if degraded {
		h.logger.Warn("Program previews served from keyword fallback", map[string]interface{}{
			"sessionId": input.SessionID,
		})
	}
	h.logger.Info("Skill profile finalized", map[string]interface{}{
		"sessionId":        input.SessionID,
		"ranked":           len(ranked),
		"refinementSource": res.RefinementSource,
		"snapshotVersion":  snap.Version,
	})

	return &Output{
		SessionID:         input.SessionID,
		FinalRatingVector: res.Vector,
		FinalRatingString: res.RatingString,
		RankedOccupations: ranked,
		Degraded:          degraded,
		RefinementSource:  res.RefinementSource,
		Justification:     res.Justification,
	}, nil
}
