package models

import "time"

// PanelMark is the user's selection on the visual skill panel.
type PanelMark string

const (
	MarkDone         PanelMark = "done"
	MarkDoneWithHelp PanelMark = "done_with_help"
	MarkCouldDo      PanelMark = "could_do"
	MarkUnsure       PanelMark = "unsure"
	MarkUnmarked     PanelMark = "unmarked"
)

var panelMarkScores = map[PanelMark]int{
	MarkDone:         5,
	MarkDoneWithHelp: 4,
	MarkCouldDo:      3,
	MarkUnsure:       2,
	MarkUnmarked:     0,
}

// Score converts a mark to its initial panel score.
func (m PanelMark) Score() (int, bool) {
	s, ok := panelMarkScores[m]
	return s, ok
}

// ValidPanelScore reports whether v is one of the scores a panel mark can produce.
func ValidPanelScore(v int) bool {
	for _, s := range panelMarkScores {
		if s == v {
			return true
		}
	}
	return false
}

// TriageSkill is a panel entry shown to the user.
type TriageSkill struct {
	ElementID     string  `json:"elementId"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	TaskStatement string  `json:"taskStatement"`
	AnchorLow     string  `json:"anchorLow"`
	AnchorHigh    string  `json:"anchorHigh"`
	Relevance     float64 `json:"relevance"`
}

// OccupationSummary names an occupation in a list.
type OccupationSummary struct {
	OnetCode string `json:"onetCode"`
	Title    string `json:"title"`
}

// Triage is the stored outcome of the triage step for one session.
type Triage struct {
	SessionID        string              `json:"sessionId"`
	TopCodes         []InterestCode      `json:"topCodes"`
	OccupationPool   []string            `json:"occupationPool"`
	FilteredSkillIDs []string            `json:"filteredSkillIds"`
	Skills           []TriageSkill       `json:"skills"`
	TopOccupations   []OccupationSummary `json:"topOccupations,omitempty"`
	PoolStage        string              `json:"poolStage"`
	SnapshotVersion  int64               `json:"snapshotVersion"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// SkillAssessment accumulates across triage, panel and refinement. The final
// vector is written once.
type SkillAssessment struct {
	SessionID          string         `json:"sessionId"`
	OccupationPool     []string       `json:"occupationPool"`
	FilteredSkillIDs   []string       `json:"filteredSkillIds"`
	PanelInitialScores map[string]int `json:"panelInitialScores"`
	NarrativeEvidence  string         `json:"narrativeEvidence,omitempty"`
	RefinementRatings  map[string]int `json:"refinementRatings"`
	FinalRatingVector  []int          `json:"finalRatingVector"`
	FinalRatingString  string         `json:"finalRatingString"`
	Justification      string         `json:"justification,omitempty"`
	CompletedAt        time.Time      `json:"completedAt"`
}
