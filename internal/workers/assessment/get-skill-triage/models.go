// internal/workers/assessment/get-skill-triage/models.go
package getskilltriage

import "pathfinder-workers/internal/models"

// Input names the session. RiasecCode lets a session that skipped the questionnaire
// triage on a code the user already knows.
type Input struct {
	SessionID  string `json:"sessionId"`
	RiasecCode string `json:"riasecCode,omitempty"`
}

type Output struct {
	SessionID        string                     `json:"sessionId"`
	RiasecCode       string                     `json:"riasecCode"`
	Skills           []models.TriageSkill       `json:"skills"`
	OccupationPool   []string                   `json:"occupationPool"`
	FilteredSkillIDs []string                   `json:"filteredSkillIds"`
	TopOccupations   []models.OccupationSummary `json:"topOccupations"`
	PoolStage        string                     `json:"poolStage"`
	SnapshotVersion  int64                      `json:"snapshotVersion"`
}
