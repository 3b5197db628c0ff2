package occupation

import (
	"testing"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/reference/referencetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) (*reference.Snapshot, []string) {
	t.Helper()
	snap := referencetest.SnapshotOf(t, referencetest.NewData(referencetest.Options{Occupations: 60, Programs: 6, SkipEmbeddings: true}))
	return snap, snap.OccupationCodes()
}

func flatRatings(v int) []int {
	out := make([]int, models.SkillCount)
	for i := range out {
		out[i] = v
	}
	return out
}

var investigative = models.InterestScores{"R": 40, "I": 90, "A": 30, "S": 20, "E": 10, "C": 25}

// ==========================
// Components
// ==========================

func TestInterestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, InterestSimilarity([6]float64{1, 2, 3, 0, 0, 0}, [6]float64{2, 4, 6, 0, 0, 0}), 1e-12)
	assert.Equal(t, 0.0, InterestSimilarity([6]float64{}, [6]float64{1, 1, 1, 1, 1, 1}))
	assert.Equal(t, 0.0, InterestSimilarity([6]float64{1, 0, 0, 0, 0, 0}, [6]float64{0, 1, 0, 0, 0, 0}))
	// Negative cosine is clamped.
	assert.Equal(t, 0.0, InterestSimilarity([6]float64{1, 0, 0, 0, 0, 0}, [6]float64{-1, 0, 0, 0, 0, 0}))
}

func TestSkillCoverage(t *testing.T) {
	snap, pool := fixture(t)
	occ, _ := snap.Occupation(pool[0])

	assert.Equal(t, 0.0, SkillCoverage(snap, occ, flatRatings(0)))

	full := SkillCoverage(snap, occ, flatRatings(5))
	partial := SkillCoverage(snap, occ, flatRatings(2))
	assert.Greater(t, full, partial)
	assert.LessOrEqual(t, full, 1.0)

	// Exact value for a single-skill occupation with one baseline skill.
	d := referencetest.NewData(referencetest.Options{Occupations: 1, SkipEmbeddings: true})
	d.Occupations[0].Skills = map[string]models.SkillRequirement{
		referencetest.SkillID(0): {Importance: 4, Level: 2},
	}
	one := referencetest.SnapshotOf(t, d)
	o, _ := one.Occupation(d.Occupations[0].Code)

	ratings := flatRatings(0)
	ratings[0] = 5
	var den float64 = 2 * 4
	for _, sk := range one.Skills()[1:] {
		den += sk.MeanLevel * sk.MeanImportance
	}
	assert.InDelta(t, (2*4)/den, SkillCoverage(one, o, ratings), 1e-12)
}

// ==========================
// Ranking
// ==========================

func TestRank_OrderAndBreakdown(t *testing.T) {
	snap, pool := fixture(t)
	m := NewMatcher(DefaultConfig(), logger.NewTestLogger(t))

	matches, err := m.Rank(snap, investigative, flatRatings(3), pool, 0)
	require.NoError(t, err)
	require.Len(t, matches, 10)

	for i, mt := range matches {
		assert.InDelta(t, 0.5*mt.Breakdown.InterestComponent+0.5*mt.Breakdown.SkillComponent, mt.Composite, 1e-12)
		assert.GreaterOrEqual(t, mt.Composite, 0.0)
		assert.LessOrEqual(t, mt.Composite, 1.0)
		if i == 0 {
			continue
		}
		prev := matches[i-1]
		assert.GreaterOrEqual(t, prev.Composite, mt.Composite)
	}

}

func TestRank_InterestOnlyWeights(t *testing.T) {
	snap, pool := fixture(t)
	cfg := DefaultConfig()
	cfg.InterestWeight, cfg.SkillWeight = 1, 0

	matches, err := NewMatcher(cfg, logger.NewTestLogger(t)).Rank(snap, investigative, flatRatings(3), pool, 5)
	require.NoError(t, err)

	for _, mt := range matches {
		occ, _ := snap.Occupation(mt.Code)
		assert.Equal(t, models.CodeInvestigative, occ.TopCodes(1)[0], mt.Code)
		assert.Equal(t, mt.Breakdown.InterestComponent, mt.Composite)
	}
}

func TestRank_Deterministic(t *testing.T) {
	snap, pool := fixture(t)
	m := NewMatcher(DefaultConfig(), logger.NewTestLogger(t))

	reversed := make([]string, len(pool))
	for i, c := range pool {
		reversed[len(pool)-1-i] = c
	}

	a, err := m.Rank(snap, investigative, flatRatings(4), pool, 50)
	require.NoError(t, err)
	b, err := m.Rank(snap, investigative, flatRatings(4), reversed, 50)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRank_TieBreaks(t *testing.T) {
	d := referencetest.NewData(referencetest.Options{Occupations: 3, SkipEmbeddings: true})
	// Make all three identical apart from wage and code.
	base := d.Occupations[0]
	for i := range d.Occupations {
		d.Occupations[i].InterestScores = base.InterestScores
		d.Occupations[i].Skills = base.Skills
	}
	high := 90000.0
	d.Occupations[0].MedianWage = nil
	d.Occupations[1].MedianWage = &high
	d.Occupations[2].MedianWage = nil
	snap := referencetest.SnapshotOf(t, d)

	matches, err := NewMatcher(DefaultConfig(), logger.NewTestLogger(t)).
		Rank(snap, investigative, flatRatings(3), snap.OccupationCodes(), 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, d.Occupations[1].Code, matches[0].Code, "known wage beats missing wage")
	assert.Equal(t, d.Occupations[0].Code, matches[1].Code, "then O*NET code ascending")
	assert.Equal(t, d.Occupations[2].Code, matches[2].Code)
}

func TestRank_TopNCapped(t *testing.T) {
	snap, pool := fixture(t)
	m := NewMatcher(DefaultConfig(), logger.NewTestLogger(t))

	matches, err := m.Rank(snap, investigative, flatRatings(3), pool, 500)
	require.NoError(t, err)
	assert.Len(t, matches, 50)

	matches, err = m.Rank(snap, investigative, flatRatings(3), pool[:5], 20)
	require.NoError(t, err)
	assert.Len(t, matches, 5)
}

func TestRank_Errors(t *testing.T) {
	snap, pool := fixture(t)
	m := NewMatcher(DefaultConfig(), logger.NewTestLogger(t))

	tests := []struct {
		name     string
		interest models.InterestScores
		ratings  []int
		pool     []string
		topN     int
		wantCode apperrors.ErrorCode
	}{
		{"empty pool", investigative, flatRatings(3), nil, 10, apperrors.ErrCodeValidation},
		{"negative topN", investigative, flatRatings(3), pool, -1, apperrors.ErrCodeValidation},
		{"short vector", investigative, []int{1, 2, 3}, pool, 10, apperrors.ErrCodeValidation},
		{"incomplete interest", models.InterestScores{"R": 1}, flatRatings(3), pool, 10, apperrors.ErrCodeValidation},
		{"unknown pool code", investigative, flatRatings(3), []string{"99-9999.00"}, 10, apperrors.ErrCodeDataIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Rank(snap, tt.interest, tt.ratings, tt.pool, tt.topN)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestRank_OccupationWithoutData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Occupation)
	}{
		{"no interest scores", func(o *models.Occupation) { o.InterestScores = nil }},
		{"no skills", func(o *models.Occupation) { o.Skills = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := referencetest.NewData(referencetest.Options{Occupations: 2, SkipEmbeddings: true})
			tt.mutate(&d.Occupations[1])
			snap := referencetest.SnapshotOf(t, d)

			_, err := NewMatcher(DefaultConfig(), logger.NewTestLogger(t)).
				Rank(snap, investigative, flatRatings(3), snap.OccupationCodes(), 10)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeDataIntegrity, apperrors.CodeOf(err))
		})
	}
}
