// internal/models/occupation.go
package models

import "regexp"

// SkillCount is the fixed number of skill dimensions in every rating vector.
const SkillCount = 40

var onetCodePattern = regexp.MustCompile(`^\d{2}-\d{4}\.\d{2}$`)

// ValidOnetCode checks the O*NET-SOC format, e.g. 15-1252.00.
func ValidOnetCode(code string) bool {
	return onetCodePattern.MatchString(code)
}

// SkillElement is one of the 40 reference skill dimensions.
type SkillElement struct {
	ID             string  `json:"elementId" yaml:"element_id"`
	Name           string  `json:"name" yaml:"name"`
	Category       string  `json:"category" yaml:"category"`
	TaskStatement  string  `json:"taskStatement" yaml:"task_statement"`
	AnchorLow      string  `json:"anchorLow" yaml:"anchor_low"`
	AnchorHigh     string  `json:"anchorHigh" yaml:"anchor_high"`
	MeanImportance float64 `json:"meanImportance" yaml:"mean_importance"`
	MeanLevel      float64 `json:"meanLevel" yaml:"mean_level"`
}

// BaselineRelevance is the population importance*level used when an occupation lacks the skill.
func (s SkillElement) BaselineRelevance() float64 {
	return s.MeanImportance * s.MeanLevel
}

// SkillRequirement is an occupation's importance (1..5) and level (1..7) for one skill.
type SkillRequirement struct {
	Importance float64 `json:"importance" yaml:"importance"`
	Level      float64 `json:"level" yaml:"level"`
}

type Occupation struct {
	Code           string                      `json:"onetCode" yaml:"onet_code"`
	Title          string                      `json:"title" yaml:"title"`
	Description    string                      `json:"description" yaml:"description"`
	InterestScores InterestScores              `json:"interestScores" yaml:"interest_scores"`
	Skills         map[string]SkillRequirement `json:"skills" yaml:"skills"`
	MedianWage     *float64                    `json:"medianAnnualWage,omitempty" yaml:"median_annual_wage"`
	Outlook        string                      `json:"employmentOutlook" yaml:"employment_outlook"`
	JobZone        int                         `json:"jobZone" yaml:"job_zone"`
}

// TopCodes ranks the occupation's own interest codes with the shared tie-break.
func (o *Occupation) TopCodes(n int) []InterestCode {
	return o.InterestScores.Top(n)
}

// Wage returns the median wage, or -1 when unknown so that missing wages sort last.
func (o *Occupation) Wage() float64 {
	if o.MedianWage == nil {
		return -1
	}
	return *o.MedianWage
}

// Program is a training program offered by an institution.
type Program struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	InstitutionID   string   `json:"institutionId" yaml:"institution_id"`
	InstitutionName string   `json:"institutionName" yaml:"institution_name"`
	DegreeType      string   `json:"degreeType" yaml:"degree_type"`
	DurationYears   *float64 `json:"durationYears,omitempty" yaml:"duration_years"`
	Location        string   `json:"location" yaml:"location"`
	URL             string   `json:"programUrl" yaml:"program_url"`
	Description     string   `json:"description" yaml:"description"`
}
