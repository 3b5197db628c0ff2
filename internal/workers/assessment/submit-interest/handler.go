// internal/workers/assessment/submit-interest/handler.go
package submitinterest

import (
	"context"
	"math"
	"strings"

	"pathfinder-workers/internal/common/camunda"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/validation"
	"pathfinder-workers/internal/matching/interest"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "submit-interest"

	// MinSessionIDLength is the shortest caller-supplied session id accepted; shorter ids are replaced.
	MinSessionIDLength = 8
)

type Handler struct {
	config *Config
	store  session.Store
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, store session.Store, v *validation.Validator, obs camunda.JobObserver, log logger.Logger) *Handler {
	runner := camunda.NewRunner(TaskType, config.Timeout, v, obs, log)
	return &Handler{
		config: config,
		store:  store,
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

// Execute scores the questionnaire and stores the profile. A session is scored once; a
// resubmission under the same session id fails with INTEREST_ALREADY_SUBMITTED.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if t := input.CompletionTimeSeconds; t != nil && (*t <= 0 || math.IsNaN(*t)) {
		return nil, apperrors.NewValidationError("invalid completion time",
			apperrors.Field("completionTimeSeconds", "OUT_OF_RANGE", "must be positive"))
	}

	result, err := interest.Score(input.Responses)
	if err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if len(sessionID) < MinSessionIDLength {
		sessionID = uuid.NewString()
	}

	profile := &models.InterestProfile{
		SessionID:  sessionID,
		Scores:     result.Scores,
		TopCodes:   result.TopCodes,
		Confidence: result.Confidence,
		Source:     models.ProfileSourceQuestionnaire,
	}
	if err := h.store.SaveInterest(ctx, profile); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"sessionId":       sessionID,
		"riasecCode":      models.JoinCodes(result.TopCodes),
		"confidenceLevel": result.ConfidenceLevel,
	}
	if input.CompletionTimeSeconds != nil {
		fields["completionTimeSeconds"] = *input.CompletionTimeSeconds
	}
	h.logger.Info("Interest profile stored", fields)

	return &Output{
		SessionID:       sessionID,
		RiasecScores:    result.Scores.Rounded(),
		TopCodes:        result.TopCodes,
		RiasecCode:      models.JoinCodes(result.TopCodes),
		Confidence:      math.Round(result.Confidence*1000) / 1000,
		ConfidenceLevel: result.ConfidenceLevel,
	}, nil
}
