// internal/workers/assessment/submit-interest/models.go
package submitinterest

import "pathfinder-workers/internal/models"

type Input struct {
	SessionID             string            `json:"sessionId,omitempty"`
	Responses             map[string]string `json:"responses"`
	CompletionTimeSeconds *float64          `json:"completionTimeSeconds,omitempty"`
}

type Output struct {
	SessionID       string                `json:"sessionId"`
	RiasecScores    models.InterestScores `json:"riasecScores"`
	TopCodes        []models.InterestCode `json:"topCodes"`
	RiasecCode      string                `json:"riasecCode"`
	Confidence      float64               `json:"confidence"`
	ConfidenceLevel string                `json:"confidenceLevel"`
}
