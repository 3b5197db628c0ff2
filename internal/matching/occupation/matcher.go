// Package occupation ranks an occupation pool against a user's interest and skill profile.
package occupation

import (
	"math"
	"sort"
	"time"

	"pathfinder-workers/internal/common/config"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/metrics"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

type Config struct {
	InterestWeight float64
	SkillWeight    float64
	DefaultTopN    int
	MaxTopN        int
	SlowThreshold  time.Duration
}

func DefaultConfig() Config {
	return Config{
		InterestWeight: 0.5,
		SkillWeight:    0.5,
		DefaultTopN:    10,
		MaxTopN:        50,
		SlowThreshold:  500 * time.Millisecond,
	}
}

func FromConfig(c config.MatchingConfig) Config {
	return Config{
		InterestWeight: c.InterestWeight,
		SkillWeight:    c.SkillWeight,
		DefaultTopN:    c.DefaultTopN,
		MaxTopN:        c.MaxTopN,
		SlowThreshold:  config.GetDuration(c.SlowThreshold),
	}
}

type Breakdown struct {
	InterestComponent float64 `json:"interestComponent"`
	SkillComponent    float64 `json:"skillComponent"`
}

type Match struct {
	Code       string    `json:"onetCode"`
	Title      string    `json:"title"`
	Composite  float64   `json:"compositeScore"`
	Breakdown  Breakdown `json:"breakdown"`
	MedianWage *float64  `json:"medianAnnualWage,omitempty"`
	Outlook    string    `json:"employmentOutlook,omitempty"`
	JobZone    int       `json:"jobZone,omitempty"`
}

type Matcher struct {
	cfg    Config
	logger logger.Logger
}

func NewMatcher(cfg Config, log logger.Logger) *Matcher {
	return &Matcher{cfg: cfg, logger: log}
}

// Rank scores every pool occupation and returns the best topN. topN 0 means the default;
// values above the maximum are capped.
func (m *Matcher) Rank(snap *reference.Snapshot, interest models.InterestScores, ratings []int, pool []string, topN int) ([]Match, error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		metrics.MatchingDuration.Observe(elapsed.Seconds())
		if m.cfg.SlowThreshold > 0 && elapsed > m.cfg.SlowThreshold {
			m.logger.Warn("Slow occupation ranking", map[string]interface{}{
				"pool":       len(pool),
				"durationMs": elapsed.Milliseconds(),
			})
		}
	}()

	if err := m.validate(interest, ratings, pool, topN); err != nil {
		return nil, err
	}
	if topN == 0 {
		topN = m.cfg.DefaultTopN
	}
	if m.cfg.MaxTopN > 0 && topN > m.cfg.MaxTopN {
		topN = m.cfg.MaxTopN
	}

	user := interest.Vector()
	matches := make([]Match, 0, len(pool))
	for _, code := range pool {
		occ, ok := snap.Occupation(code)
		if !ok {
			return nil, apperrors.NewDataIntegrityError("occupation " + code + " in pool is not in the reference data").
				WithMetadata("onetCode", code)
		}
		if len(occ.InterestScores) == 0 {
			return nil, apperrors.NewDataIntegrityError("occupation " + code + " has no interest scores").
				WithMetadata("onetCode", code)
		}
		if len(occ.Skills) == 0 {
			return nil, apperrors.NewDataIntegrityError("occupation " + code + " has no skill requirements").
				WithMetadata("onetCode", code)
		}

		b := Breakdown{
			InterestComponent: InterestSimilarity(user, occ.InterestScores.Vector()),
			SkillComponent:    SkillCoverage(snap, occ, ratings),
		}
		matches = append(matches, Match{
			Code:       occ.Code,
			Title:      occ.Title,
			Composite:  m.cfg.InterestWeight*b.InterestComponent + m.cfg.SkillWeight*b.SkillComponent,
			Breakdown:  b,
			MedianWage: occ.MedianWage,
			Outlook:    occ.Outlook,
			JobZone:    occ.JobZone,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		wa, wb := wage(a.MedianWage), wage(b.MedianWage)
		if wa != wb {
			return wa > wb
		}
		return a.Code < b.Code
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

func (m *Matcher) validate(interest models.InterestScores, ratings []int, pool []string, topN int) error {
	var fields []apperrors.FieldError
	if len(pool) == 0 {
		fields = append(fields, apperrors.Field("occupationPool", "REQUIRED", "occupation pool is empty"))
	}
	if topN < 0 {
		fields = append(fields, apperrors.Field("topN", "OUT_OF_RANGE", "topN must be >= 0, got %d", topN))
	}
	if len(ratings) != models.SkillCount {
		fields = append(fields, apperrors.Field("finalRatingVector", "LENGTH",
			"expected %d ratings, got %d", models.SkillCount, len(ratings)))
	}
	if !interest.Complete() {
		fields = append(fields, apperrors.Field("riasecScores", "INCOMPLETE", "all six interest codes are required"))
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid match request", fields...)
	}
	return nil
}

// InterestSimilarity is the cosine of two RIASEC vectors clamped to [0,1]; 0 for a zero vector.
func InterestSimilarity(a, b [6]float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SkillCoverage is sum(min(user, level) * importance) / sum(level * importance) over all skills,
// using the population means where the occupation has no entry.
func SkillCoverage(snap *reference.Snapshot, occ *models.Occupation, ratings []int) float64 {
	var num, den float64
	for i, sk := range snap.Skills() {
		importance, level := sk.MeanImportance, sk.MeanLevel
		if req, ok := occ.Skills[sk.ID]; ok {
			importance, level = req.Importance, req.Level
		}
		user := 0.0
		if i < len(ratings) {
			user = float64(ratings[i])
		}
		num += math.Min(user, level) * importance
		den += level * importance
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}

func wage(w *float64) float64 {
	if w == nil {
		return -1
	}
	return *w
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
