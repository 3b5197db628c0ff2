// Package triage narrows the occupation population to a pool that fits the user's interest
// code and picks the skills worth asking about.
package triage

import (
	"fmt"
	"sort"

	"pathfinder-workers/internal/common/config"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/metrics"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

type Config struct {
	MinPool      int
	MaxPool      int
	MinPanel     int
	MaxPanel     int
	GapThreshold float64
}

func DefaultConfig() Config {
	return Config{MinPool: 100, MaxPool: 150, MinPanel: 25, MaxPanel: 30, GapThreshold: 0.05}
}

func FromConfig(c config.TriageConfig) Config {
	return Config{
		MinPool:      c.MinPool,
		MaxPool:      c.MaxPool,
		MinPanel:     c.MinPanel,
		MaxPanel:     c.MaxPanel,
		GapThreshold: c.GapThreshold,
	}
}

// Pool stages, in relaxation order.
const (
	StageTop3     = "top3"
	StageTop4     = "top4"
	StageTop5     = "top5"
	StageAny      = "any"
	StageFallback = "all"
)

var stages = []struct {
	name string
	k    int
}{
	{StageTop3, 3},
	{StageTop4, 4},
	{StageTop5, 5},
	{StageAny, 6},
}

// rankWeights weight the user's first, second and third code in pool ordering.
var rankWeights = []float64{3, 2, 1}

type Result struct {
	OccupationPool   []string
	Stage            string
	Skills           []models.TriageSkill
	FilteredSkillIDs []string
}

type Filter struct {
	cfg Config
}

func NewFilter(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Run builds the pool and the panel against one snapshot. Neither output is ever empty.
func (f *Filter) Run(snap *reference.Snapshot, topCodes []models.InterestCode) (*Result, error) {
	if err := ValidateTopCodes(topCodes); err != nil {
		return nil, err
	}

	pool, stage := f.selectPool(snap, topCodes)
	if len(pool) == 0 {
		return nil, apperrors.NewDataIntegrityError("reference snapshot has no occupations")
	}
	metrics.TriagePoolSize.WithLabelValues(stage).Observe(float64(len(pool)))

	skills := f.selectPanel(snap, pool)

	ids := make([]string, len(skills))
	for i, s := range skills {
		ids[i] = s.ElementID
	}

	return &Result{
		OccupationPool:   pool,
		Stage:            stage,
		Skills:           skills,
		FilteredSkillIDs: ids,
	}, nil
}

// ValidateTopCodes accepts one to three distinct RIASEC codes.
func ValidateTopCodes(codes []models.InterestCode) error {
	if len(codes) == 0 {
		return apperrors.NewValidationError("top codes are required",
			apperrors.Field("topCodes", "REQUIRED", "at least one interest code is required"))
	}
	if len(codes) > 3 {
		return apperrors.NewValidationError("too many top codes",
			apperrors.Field("topCodes", "TOO_MANY", "at most 3 interest codes, got %d", len(codes)))
	}

	seen := make(map[models.InterestCode]bool, len(codes))
	var fields []apperrors.FieldError
	for i, c := range codes {
		field := fmt.Sprintf("topCodes[%d]", i)
		if !c.Valid() {
			fields = append(fields, apperrors.Field(field, "INVALID_CODE", "%q is not a RIASEC code", string(c)))
			continue
		}
		if seen[c] {
			fields = append(fields, apperrors.Field(field, "DUPLICATE", "code %s appears more than once", string(c)))
		}
		seen[c] = true
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid top codes", fields...)
	}
	return nil
}

type candidate struct {
	code      string
	alignment float64
}

func (f *Filter) selectPool(snap *reference.Snapshot, topCodes []models.InterestCode) ([]string, string) {
	codes := snap.OccupationCodes()

	var chosen []candidate
	stage := StageFallback
	for _, st := range stages {
		var matched []candidate
		for _, code := range codes {
			occ, _ := snap.Occupation(code)
			if overlaps(occ, topCodes, st.k) {
				matched = append(matched, candidate{code: code, alignment: alignment(occ, topCodes)})
			}
		}
		if len(matched) == 0 {
			continue
		}
		chosen, stage = matched, st.name
		if len(matched) >= f.cfg.MinPool {
			break
		}
	}

	if len(chosen) == 0 {
		for _, code := range codes {
			occ, _ := snap.Occupation(code)
			chosen = append(chosen, candidate{code: code, alignment: alignment(occ, topCodes)})
		}
		stage = StageFallback
	}

	sort.SliceStable(chosen, func(i, j int) bool {
		if chosen[i].alignment != chosen[j].alignment {
			return chosen[i].alignment > chosen[j].alignment
		}
		return chosen[i].code < chosen[j].code
	})
	if f.cfg.MaxPool > 0 && len(chosen) > f.cfg.MaxPool {
		chosen = chosen[:f.cfg.MaxPool]
	}

	pool := make([]string, len(chosen))
	for i, c := range chosen {
		pool[i] = c.code
	}
	return pool, stage
}

// overlaps reports whether one of the user's codes is among the occupation's top k codes
// with a positive score. k = 6 admits any positive score on a user code.
func overlaps(occ *models.Occupation, topCodes []models.InterestCode, k int) bool {
	occTop := occ.TopCodes(k)
	for _, uc := range topCodes {
		if occ.InterestScores[uc] <= 0 {
			continue
		}
		for _, oc := range occTop {
			if oc == uc {
				return true
			}
		}
	}
	return false
}

func alignment(occ *models.Occupation, topCodes []models.InterestCode) float64 {
	var sum float64
	for i, c := range topCodes {
		sum += rankWeights[i] * occ.InterestScores[c]
	}
	return sum
}

type rankedSkill struct {
	skill     models.SkillElement
	relevance float64
}

func (f *Filter) selectPanel(snap *reference.Snapshot, pool []string) []models.TriageSkill {
	all := snap.Skills()
	ranked := make([]rankedSkill, len(all))
	for i, sk := range all {
		ranked[i] = rankedSkill{skill: sk, relevance: Relevance(snap, pool, sk)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].relevance != ranked[j].relevance {
			return ranked[i].relevance > ranked[j].relevance
		}
		return ranked[i].skill.ID < ranked[j].skill.ID
	})

	n := f.cfg.MinPanel
	if n > len(ranked) {
		n = len(ranked)
	}
	for n < len(ranked) && n < f.cfg.MaxPanel {
		prev, next := ranked[n-1].relevance, ranked[n].relevance
		var gap float64
		if prev > 0 {
			gap = (prev - next) / prev
		} else if next != prev {
			break
		}
		if gap > f.cfg.GapThreshold {
			break
		}
		n++
	}

	out := make([]models.TriageSkill, n)
	for i, r := range ranked[:n] {
		out[i] = models.TriageSkill{
			ElementID:     r.skill.ID,
			Name:          r.skill.Name,
			Category:      r.skill.Category,
			TaskStatement: r.skill.TaskStatement,
			AnchorLow:     r.skill.AnchorLow,
			AnchorHigh:    r.skill.AnchorHigh,
			Relevance:     r.relevance,
		}
	}
	return out
}

// Relevance is the pool mean of importance*level, using the population baseline where an
// occupation has no entry for the skill.
func Relevance(snap *reference.Snapshot, pool []string, sk models.SkillElement) float64 {
	if len(pool) == 0 {
		return sk.BaselineRelevance()
	}
	var sum float64
	for _, code := range pool {
		occ, ok := snap.Occupation(code)
		if !ok {
			sum += sk.BaselineRelevance()
			continue
		}
		if req, ok := occ.Skills[sk.ID]; ok {
			sum += req.Importance * req.Level
		} else {
			sum += sk.BaselineRelevance()
		}
	}
	return sum / float64(len(pool))
}
