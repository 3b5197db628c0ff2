package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/reference/referencetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) *reference.Snapshot {
	return referencetest.SnapshotOf(t, referencetest.NewData(referencetest.Options{Occupations: 10, Programs: 3, SkipEmbeddings: true}))
}

// panel returns the first n canonical skill ids.
func panel(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = referencetest.SkillID(i)
	}
	return ids
}

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// ==========================
// Vector construction
// ==========================

func TestResolve_PanelOnly(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), snap, Input{
		FilteredSkillIDs: panel(25),
		PanelInitialScores: map[string]int{
			referencetest.SkillID(0): 5,
			referencetest.SkillID(1): 4,
			referencetest.SkillID(2): 0,
			referencetest.SkillID(3): 2,
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Vector, models.SkillCount)
	assert.Equal(t, []int{5, 4, 0, 2, 0}, res.Vector[:5])
	assert.Equal(t, SourceNone, res.RefinementSource)

	parts := strings.Split(res.RatingString, "|")
	assert.Len(t, parts, models.SkillCount)
	assert.NotContains(t, res.RatingString, " ")
	assert.True(t, strings.HasPrefix(res.RatingString, "5|4|0|2|0|"))
}

func TestResolve_RefinementAveragesAndRounds(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), snap, Input{
		FilteredSkillIDs: panel(25),
		PanelInitialScores: map[string]int{
			referencetest.SkillID(0): 5,
			referencetest.SkillID(1): 2,
			referencetest.SkillID(2): 4,
		},
		RefinementRatings: map[string]int{
			referencetest.SkillID(0): 3, // (5+3)/2 = 4
			referencetest.SkillID(1): 1, // (2+1)/2 = 1.5 -> 2
			referencetest.SkillID(2): 3, // (4+3)/2 = 3.5 -> 4
			referencetest.SkillID(3): 3, // unmarked: (0+3)/2 = 1.5 -> 2
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 4, 2}, res.Vector[:4])
	assert.Equal(t, SourceCaller, res.RefinementSource)
}

func TestResolve_SkillsOutsidePanelAreZero(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), snap, Input{
		FilteredSkillIDs:   panel(25),
		PanelInitialScores: map[string]int{referencetest.SkillID(24): 5},
	})
	require.NoError(t, err)
	for i := 25; i < models.SkillCount; i++ {
		assert.Equal(t, 0, res.Vector[i])
	}
	assert.Equal(t, 5, res.Vector[24])
}

func TestCombine(t *testing.T) {
	tests := []struct{ panel, refinement, want int }{
		{0, 1, 1}, {0, 3, 2}, {2, 1, 2}, {3, 2, 3}, {4, 3, 4}, {5, 3, 4}, {5, 2, 4}, {3, 3, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Combine(tt.panel, tt.refinement), "%d+%d", tt.panel, tt.refinement)
	}
	assert.Equal(t, 5, Combine(9, 3))
	assert.Equal(t, 0, Combine(-4, 1))
}

func TestFormatAndParseVector(t *testing.T) {
	v := make([]int, models.SkillCount)
	v[0], v[39] = 5, 3

	s := FormatVector(v)
	got, err := ParseVector(s, models.SkillCount)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = ParseVector("1|2|3", models.SkillCount)
	assert.Error(t, err)
	_, err = ParseVector(strings.Repeat("6|", 39)+"6", models.SkillCount)
	assert.Error(t, err)
}

// ==========================
// Validation
// ==========================

func TestResolve_Validation(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(nil, logger.NewTestLogger(t))

	tests := []struct {
		name      string
		in        Input
		wantField string
		wantCode  string
	}{
		{
			name:      "panel value 1 is not a mark",
			in:        Input{PanelInitialScores: map[string]int{referencetest.SkillID(0): 1}},
			wantField: "panelInitialScores." + referencetest.SkillID(0),
			wantCode:  "INVALID_SCORE",
		},
		{
			name:      "panel value above 5",
			in:        Input{PanelInitialScores: map[string]int{referencetest.SkillID(0): 6}},
			wantField: "panelInitialScores." + referencetest.SkillID(0),
			wantCode:  "INVALID_SCORE",
		},
		{
			name:      "refinement out of range",
			in:        Input{RefinementRatings: map[string]int{referencetest.SkillID(1): 4}},
			wantField: "refinementRatings." + referencetest.SkillID(1),
			wantCode:  "OUT_OF_RANGE",
		},
		{
			name:      "refinement zero",
			in:        Input{RefinementRatings: map[string]int{referencetest.SkillID(1): 0}},
			wantField: "refinementRatings." + referencetest.SkillID(1),
			wantCode:  "OUT_OF_RANGE",
		},
		{
			name:      "unknown skill",
			in:        Input{PanelInitialScores: map[string]int{"9.Z.99": 3}},
			wantField: "panelInitialScores.9.Z.99",
			wantCode:  "UNKNOWN_SKILL",
		},
		{
			name:      "skill not in panel",
			in:        Input{RefinementRatings: map[string]int{referencetest.SkillID(30): 2}},
			wantField: "refinementRatings." + referencetest.SkillID(30),
			wantCode:  "NOT_IN_PANEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.FilteredSkillIDs = panel(25)
			_, err := r.Resolve(context.Background(), snap, tt.in)
			require.Error(t, err)

			stdErr := apperrors.AsStandard(err)
			assert.Equal(t, apperrors.ErrCodeValidation, stdErr.Code)
			require.Len(t, stdErr.Fields, 1)
			assert.Equal(t, tt.wantField, stdErr.Fields[0].Field)
			assert.Equal(t, tt.wantCode, stdErr.Fields[0].Code)
		})
	}
}

// ==========================
// Refinement stage
// ==========================

func TestResolve_LLMFillsGapsOnly(t *testing.T) {
	snap := testSnapshot(t)
	gen := &stubGenerator{response: "```json\n" + `{
		"ratings": {"2.A.01": 1, "2.A.02": 3, "2.A.30": 3, "2.A.03": 7},
		"justification": "Led a robotics club."
	}` + "\n```"}
	r := NewResolver(NewLLMRefiner(gen, time.Second), logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), snap, Input{
		FilteredSkillIDs: panel(25),
		PanelInitialScores: map[string]int{
			"2.A.01": 5,
			"2.A.02": 3,
			"2.A.03": 4,
		},
		RefinementRatings: map[string]int{"2.A.01": 3},
		NarrativeEvidence: "I built and programmed robots for three years.",
	})
	require.NoError(t, err)

	// Caller's 3 wins over the model's 1 for 2.A.01.
	assert.Equal(t, 4, res.Vector[0])
	// Model fills 2.A.02: (3+3)/2.
	assert.Equal(t, 3, res.Vector[1])
	// Out-of-range 7 is dropped, panel score stays.
	assert.Equal(t, 4, res.Vector[2])
	// 2.A.30 is outside the panel and ignored.
	assert.Equal(t, 0, res.Vector[29])

	assert.Equal(t, SourceMixed, res.RefinementSource)
	assert.Equal(t, "Led a robotics club.", res.Justification)
	assert.Equal(t, map[string]int{"2.A.01": 3, "2.A.02": 3}, res.RefinementRatings)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.lastPrompt, "I built and programmed robots")
	assert.NotContains(t, gen.lastPrompt, "- 2.A.01 |", "caller-rated skills are not sent")
	assert.Contains(t, gen.lastPrompt, "- 2.A.02 |")
}

func TestResolve_LLMFailureIsPassThrough(t *testing.T) {
	snap := testSnapshot(t)
	in := Input{
		FilteredSkillIDs:   panel(25),
		PanelInitialScores: map[string]int{"2.A.01": 4},
		NarrativeEvidence:  "Some narrative.",
	}

	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"generator error", &stubGenerator{err: errors.New("quota exhausted")}},
		{"malformed json", &stubGenerator{response: "not json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(NewLLMRefiner(tt.gen, time.Second), logger.NewTestLogger(t))
			res, err := r.Resolve(context.Background(), snap, in)
			require.NoError(t, err)
			assert.Equal(t, 4, res.Vector[0])
			assert.Equal(t, SourceNone, res.RefinementSource)
			assert.Empty(t, res.Justification)
		})
	}
}

func TestResolve_NoNarrativeSkipsStage(t *testing.T) {
	snap := testSnapshot(t)
	gen := &stubGenerator{response: `{"ratings": {}}`}
	r := NewResolver(NewLLMRefiner(gen, time.Second), logger.NewTestLogger(t))

	_, err := r.Resolve(context.Background(), snap, Input{
		FilteredSkillIDs:   panel(25),
		PanelInitialScores: map[string]int{"2.A.01": 4},
		NarrativeEvidence:  "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, gen.calls)
}

func TestLLMRefiner_DecodeError(t *testing.T) {
	r := NewLLMRefiner(&stubGenerator{response: "{"}, 0)
	_, err := r.Refine(context.Background(), RefineRequest{Narrative: "x"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRefinementFailed, apperrors.CodeOf(err))
}
