// internal/workers/assessment/submit-skill-profile/models.go
package submitskillprofile

import "pathfinder-workers/internal/matching/assemble"

type Input struct {
	SessionID          string         `json:"sessionId"`
	PanelInitialScores map[string]int `json:"panelInitialScores"`
	NarrativeEvidence  string         `json:"narrativeEvidence,omitempty"`
	RefinementRatings  map[string]int `json:"refinementRatings,omitempty"`
	TopN               int            `json:"topN,omitempty"`
}

type Output struct {
	SessionID         string                      `json:"sessionId"`
	FinalRatingVector []int                       `json:"finalRatingVector"`
	FinalRatingString string                      `json:"finalRatingString"`
	RankedOccupations []assemble.RankedOccupation `json:"rankedOccupations"`
	Degraded          bool                        `json:"degraded"`
	RefinementSource  string                      `json:"refinementSource"`
	Justification     string                      `json:"justification,omitempty"`
}
