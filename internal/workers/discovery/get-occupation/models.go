// internal/workers/discovery/get-occupation/models.go
package getoccupation

import "pathfinder-workers/internal/models"

type Input struct {
	OnetCode string `json:"onetCode"`
}

type Skill struct {
	ElementID  string  `json:"elementId"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
	Level      float64 `json:"level"`
}

type Output struct {
	OnetCode          string                `json:"onetCode"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	MedianAnnualWage  *float64              `json:"medianAnnualWage,omitempty"`
	EmploymentOutlook string                `json:"employmentOutlook"`
	JobZone           int                   `json:"jobZone"`
	InterestScores    models.InterestScores `json:"interestScores"`
	InterestCodes     []models.InterestCode `json:"interestCodes"`
	RiasecCode        string                `json:"riasecCode"`
	TopSkills         []Skill               `json:"topSkills"`
	OnetURL           string                `json:"onetUrl"`
	LinkedPrograms    []string              `json:"linkedPrograms"`
}
