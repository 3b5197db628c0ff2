// Package profile resolves panel marks and refinement ratings into the final skill vector.
package profile

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

// Refinement sources reported with the resolution.
const (
	SourceNone   = "none"
	SourceCaller = "caller"
	SourceStage  = "stage"
	SourceMixed  = "caller+stage"
)

const (
	minRefinement = 1
	maxRefinement = 3
	maxRating     = 5
)

type Input struct {
	FilteredSkillIDs   []string
	PanelInitialScores map[string]int
	RefinementRatings  map[string]int
	NarrativeEvidence  string
}

type Resolution struct {
	Vector            []int
	RatingString      string
	RefinementRatings map[string]int
	RefinementSource  string
	Justification     string
}

type Resolver struct {
	refiner Refiner
	logger  logger.Logger
}

// NewResolver builds a resolver. A nil refiner means pass-through.
func NewResolver(refiner Refiner, log logger.Logger) *Resolver {
	if refiner == nil {
		refiner = PassThrough{}
	}
	return &Resolver{refiner: refiner, logger: log}
}

// Resolve validates the submission, runs the refinement stage for unrated panel skills and
// builds the 40-entry vector in canonical order.
func (r *Resolver) Resolve(ctx context.Context, snap *reference.Snapshot, in Input) (*Resolution, error) {
	panelSet := make(map[string]bool, len(in.FilteredSkillIDs))
	for _, id := range in.FilteredSkillIDs {
		panelSet[id] = true
	}

	if fields := validate(snap, panelSet, in); len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid skill profile", fields...)
	}

	ratings := make(map[string]int, len(in.RefinementRatings))
	for id, v := range in.RefinementRatings {
		ratings[id] = v
	}
	source := SourceNone
	if len(ratings) > 0 {
		source = SourceCaller
	}

	var justification string
	if proposed, just := r.refine(ctx, snap, in, ratings); len(proposed) > 0 {
		for id, v := range proposed {
			ratings[id] = v
		}
		justification = just
		if source == SourceCaller {
			source = SourceMixed
		} else {
			source = SourceStage
		}
	}

	vector := BuildVector(snap, in.PanelInitialScores, ratings, panelSet)
	return &Resolution{
		Vector:            vector,
		RatingString:      FormatVector(vector),
		RefinementRatings: ratings,
		RefinementSource:  source,
		Justification:     justification,
	}, nil
}

// refine asks the stage for ratings on panel skills the caller left unrated. Caller ratings
// always win and any stage failure falls back to what the caller supplied.
func (r *Resolver) refine(ctx context.Context, snap *reference.Snapshot, in Input, callerRatings map[string]int) (map[string]int, string) {
	if strings.TrimSpace(in.NarrativeEvidence) == "" {
		return nil, ""
	}

	var gaps []models.SkillElement
	for _, id := range in.FilteredSkillIDs {
		if _, rated := callerRatings[id]; rated {
			continue
		}
		if sk, ok := snap.Skill(id); ok {
			gaps = append(gaps, sk)
		}
	}
	if len(gaps) == 0 {
		return nil, ""
	}

	out, err := r.refiner.Refine(ctx, RefineRequest{
		Narrative: in.NarrativeEvidence,
		Skills:    gaps,
		Panel:     in.PanelInitialScores,
	})
	if err != nil {
		r.logger.Warn("Refinement stage failed, using caller ratings only", map[string]interface{}{
			"refiner": r.refiner.Name(),
			"error":   err.Error(),
		})
		return nil, ""
	}
	if out == nil {
		return nil, ""
	}

	allowed := make(map[string]bool, len(gaps))
	for _, sk := range gaps {
		allowed[sk.ID] = true
	}

	accepted := make(map[string]int)
	var dropped []string
	for id, v := range out.Ratings {
		if !allowed[id] || v < minRefinement || v > maxRefinement {
			dropped = append(dropped, id)
			continue
		}
		accepted[id] = v
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		r.logger.Warn("Refinement stage proposed ratings outside the panel or range", map[string]interface{}{
			"refiner": r.refiner.Name(),
			"dropped": dropped,
		})
	}
	return accepted, out.Justification
}

func validate(snap *reference.Snapshot, panelSet map[string]bool, in Input) []apperrors.FieldError {
	var fields []apperrors.FieldError

	checkID := func(prefix, id string) bool {
		field := prefix + "." + id
		if _, ok := snap.Skill(id); !ok {
			fields = append(fields, apperrors.Field(field, "UNKNOWN_SKILL", "unknown skill id"))
			return false
		}
		if !panelSet[id] {
			fields = append(fields, apperrors.Field(field, "NOT_IN_PANEL", "skill was not part of this session's panel"))
			return false
		}
		return true
	}

	for _, id := range sortedKeys(in.PanelInitialScores) {
		if !checkID("panelInitialScores", id) {
			continue
		}
		if v := in.PanelInitialScores[id]; !models.ValidPanelScore(v) {
			fields = append(fields, apperrors.Field("panelInitialScores."+id, "INVALID_SCORE",
				"panel score %d is not one of 0, 2, 3, 4, 5", v))
		}
	}

	for _, id := range sortedKeys(in.RefinementRatings) {
		if !checkID("refinementRatings", id) {
			continue
		}
		if v := in.RefinementRatings[id]; v < minRefinement || v > maxRefinement {
			fields = append(fields, apperrors.Field("refinementRatings."+id, "OUT_OF_RANGE",
				"refinement rating %d is outside 1..3", v))
		}
	}

	return fields
}

// BuildVector combines panel and refinement per skill. Skills outside the panel are 0.
func BuildVector(snap *reference.Snapshot, panel, refinement map[string]int, panelSet map[string]bool) []int {
	skills := snap.Skills()
	vector := make([]int, len(skills))
	for i, sk := range skills {
		if !panelSet[sk.ID] {
			continue
		}
		p := panel[sk.ID]
		if rr, ok := refinement[sk.ID]; ok {
			vector[i] = Combine(p, rr)
		} else {
			vector[i] = p
		}
	}
	return vector
}

// Combine averages panel and refinement, rounding half away from zero, clamped to 0..5.
func Combine(panel, refinement int) int {
	v := int(math.Round(float64(panel+refinement) / 2))
	if v < 0 {
		return 0
	}
	if v > maxRating {
		return maxRating
	}
	return v
}

// FormatVector renders the vector as pipe-delimited integers.
func FormatVector(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, "|")
}

// ParseVector is the inverse of FormatVector and insists on exactly n entries in 0..5.
func ParseVector(s string, n int) ([]int, error) {
	parts := strings.Split(s, "|")
	if len(parts) != n {
		return nil, apperrors.NewValidationError("invalid rating vector",
			apperrors.Field("finalRatingString", "LENGTH", "expected %d entries, got %d", n, len(parts)))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > maxRating {
			return nil, apperrors.NewValidationError("invalid rating vector",
				apperrors.Field("finalRatingString", "VALUE", "entry %d (%q) is not an integer in 0..5", i, p))
		}
		out[i] = v
	}
	return out, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
