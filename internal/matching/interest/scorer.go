// Package interest scores the RIASEC questionnaire.
package interest

import (
	"sort"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/models"
)

// Confidence levels.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// confidenceGapScale is the 3rd-to-4th score gap that counts as full confidence.
const confidenceGapScale = 20.0

type Result struct {
	Scores          models.InterestScores
	TopCodes        []models.InterestCode
	Confidence      float64
	ConfidenceLevel string
}

// Score turns the 20 answers into six 0..100 scores and the dominant three-letter code.
// Every problem with the input is reported at once.
func Score(responses map[string]string) (*Result, error) {
	if fields := validate(responses); len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid questionnaire responses", fields...)
	}

	raw := make(map[models.InterestCode]float64, len(models.InterestCodes))
	for _, q := range Bank {
		w, _ := Answer(responses[q.ID]).Weight()
		for _, c := range q.Codes {
			raw[c] += w
		}
	}

	scores := make(models.InterestScores, len(models.InterestCodes))
	for _, code := range models.InterestCodes {
		n := float64(QuestionCount(code))
		lo, hi := -maxWeight*n, maxWeight*n
		scores[code] = (raw[code] - lo) / (hi - lo) * 100
	}

	conf, level := Confidence(scores)
	return &Result{
		Scores:          scores,
		TopCodes:        scores.Top(3),
		Confidence:      conf,
		ConfidenceLevel: level,
	}, nil
}

// Confidence measures how clearly the third code separates from the fourth.
func Confidence(scores models.InterestScores) (float64, string) {
	ranked := scores.Top(4)
	gap := scores[ranked[2]] - scores[ranked[3]]

	conf := gap / confidenceGapScale
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}

	switch {
	case conf < 0.34:
		return conf, ConfidenceLow
	case conf < 0.67:
		return conf, ConfidenceMedium
	default:
		return conf, ConfidenceHigh
	}
}

func validate(responses map[string]string) []apperrors.FieldError {
	var fields []apperrors.FieldError

	for _, q := range Bank {
		v, ok := responses[q.ID]
		if !ok {
			fields = append(fields, apperrors.Field("responses."+q.ID, "REQUIRED", "answer is required"))
			continue
		}
		if _, ok := Answer(v).Weight(); !ok {
			fields = append(fields, apperrors.Field("responses."+q.ID, "INVALID_ANSWER",
				"%q is not one of strongly_agree, agree, neutral, disagree, strongly_disagree", v))
		}
	}

	var unknown []string
	for id := range responses {
		if _, ok := questionIndex[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		fields = append(fields, apperrors.Field("responses."+id, "UNKNOWN_QUESTION", "unknown question id"))
	}

	return fields
}
