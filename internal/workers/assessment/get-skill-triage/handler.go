// internal/workers/assessment/get-skill-triage/handler.go
package getskilltriage

import (
	"context"
	"errors"
	"strings"
	"time"

	"pathfinder-workers/internal/common/camunda"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/matching/triage"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "get-skill-triage"
)

type Handler struct {
	config *Config
	refs   *reference.Store
	store  session.Store
	filter *triage.Filter
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, refs *reference.Store, store session.Store, v *validation.Validator, obs camunda.JobObserver, log logger.Logger) *Handler {
	runner := camunda.NewRunner(TaskType, config.Timeout, v, obs, log)
	return &Handler{
		config: config,
		refs:   refs,
		store:  store,
		filter: triage.NewFilter(config.Triage),
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

// Execute returns the session's triage, computing and storing it on first call. With a
// riasecCode and no questionnaire result, the session's interest profile is created from
// the code; a code that disagrees with the session's profile is rejected.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	codes, err := parseRiasecCode(input.RiasecCode)
	if err != nil {
		return nil, err
	}

	existing, err := h.store.GetTriage(ctx, input.SessionID)
	switch {
	case err == nil:
		if codes != nil && models.JoinCodes(existing.TopCodes) != models.JoinCodes(codes) {
			return nil, codeMismatch(codes, existing.TopCodes)
		}
		return toOutput(existing), nil
	case !errors.Is(err, apperrors.ErrSessionNotFound):
		return nil, err
	}

	profile, err := h.interestProfile(ctx, input.SessionID, codes)
	if err != nil {
		return nil, err
	}

	snap, err := h.refs.Current()
	if err != nil {
		return nil, err
	}

	result, err := h.filter.Run(snap, profile.TopCodes)
	if err != nil {
		return nil, err
	}

	stored, created, err := h.store.SaveTriageOnce(ctx, &models.Triage{
		SessionID:        input.SessionID,
		TopCodes:         profile.TopCodes,
		OccupationPool:   result.OccupationPool,
		FilteredSkillIDs: result.FilteredSkillIDs,
		Skills:           result.Skills,
		TopOccupations:   leaders(snap, result.OccupationPool, h.config.TopOccupations),
		PoolStage:        result.Stage,
		SnapshotVersion:  snap.Version,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Skill triage stored", map[string]interface{}{
		"sessionId":     input.SessionID,
		"created":       created,
		"poolSize":      len(stored.OccupationPool),
		"panelSize":     len(stored.FilteredSkillIDs),
		"poolStage":     stored.PoolStage,
		"riasecCode":    models.JoinCodes(profile.TopCodes),
		"profileSource": profile.Source,
	})
	return toOutput(stored), nil
}

// interestProfile loads the session's profile, creating it from codes when the session
// has none and codes were supplied.
func (h *Handler) interestProfile(ctx context.Context, sessionID string, codes []models.InterestCode) (*models.InterestProfile, error) {
	profile, err := h.store.GetInterest(ctx, sessionID)
	if err == nil {
		if codes != nil && !profile.SameCodes(codes) {
			return nil, codeMismatch(codes, profile.TopCodes)
		}
		return profile, nil
	}
	if codes == nil || !errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, err
	}

	profile = &models.InterestProfile{
		SessionID: sessionID,
		Scores:    models.ScoresForCode(codes),
		TopCodes:  codes,
		Source:    models.ProfileSourceCode,
	}
	err = h.store.SaveInterest(ctx, profile)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, apperrors.ErrInterestSubmitted):
		// another writer created the profile first
		stored, err := h.store.GetInterest(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !stored.SameCodes(codes) {
			return nil, codeMismatch(codes, stored.TopCodes)
		}
		return stored, nil
	default:
		return nil, err
	}
}

func parseRiasecCode(s string) ([]models.InterestCode, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	codes, err := models.ParseInterestCodes(s)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid riasecCode",
			apperrors.Field("riasecCode", "INVALID_CODE", "%s", err.Error()))
	}
	if len(codes) != 3 {
		return nil, apperrors.NewValidationError("invalid riasecCode",
			apperrors.Field("riasecCode", "INVALID_LENGTH", "expected 3 letters, got %d", len(codes)))
	}
	if err := triage.ValidateTopCodes(codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func codeMismatch(supplied, stored []models.InterestCode) error {
	return apperrors.NewValidationError("riasecCode does not match the session",
		apperrors.Field("riasecCode", "MISMATCH", "session code is %s, got %s",
			models.JoinCodes(stored), models.JoinCodes(supplied)))
}

// leaders lists the first n pool entries, which the filter orders by interest alignment.
func leaders(snap *reference.Snapshot, pool []string, n int) []models.OccupationSummary {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]models.OccupationSummary, 0, n)
	for _, code := range pool[:n] {
		occ, ok := snap.Occupation(code)
		if !ok {
			continue
		}
		out = append(out, models.OccupationSummary{OnetCode: code, Title: occ.Title})
	}
	return out
}

func toOutput(t *models.Triage) *Output {
	top := t.TopOccupations
	if top == nil {
		top = []models.OccupationSummary{}
	}
	return &Output{
		SessionID:        t.SessionID,
		RiasecCode:       models.JoinCodes(t.TopCodes),
		Skills:           t.Skills,
		OccupationPool:   t.OccupationPool,
		FilteredSkillIDs: t.FilteredSkillIDs,
		TopOccupations:   top,
		PoolStage:        t.PoolStage,
		SnapshotVersion:  t.SnapshotVersion,
	}
}
