// Package referencetest builds deterministic synthetic reference data for tests.
package referencetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/embedding"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

// Dimension is the embedding width used by fixtures.
const Dimension = 128

var (
	locations   = []string{"CA", "NY", "TX"}
	degreeTypes = []string{"Certificate", "Associate", "Bachelor"}
	durations   = []float64{0.5, 1, 2, 4}
	outlooks    = []string{"Bright", "Average", "Below Average"}
)

type Options struct {
	Occupations    int
	Programs       int
	SkipEmbeddings bool
}

func DefaultOptions() Options {
	return Options{Occupations: 240, Programs: 36}
}

// Embedder is the embedder fixtures are built with. Queries must use it too.
func Embedder() *embedding.HashEmbedder {
	return embedding.NewHashEmbedder(Dimension)
}

// SkillID is the element id of the i-th canonical skill.
func SkillID(i int) string {
	return fmt.Sprintf("2.A.%02d", i+1)
}

// OccupationCode is the O*NET code of the i-th fixture occupation.
func OccupationCode(i int) string {
	return fmt.Sprintf("%02d-%04d.00", 11+i%43, 1000+i)
}

func ProgramID(k int) string {
	return fmt.Sprintf("prog-%03d", k)
}

// NewData generates the fixture. Occupation i has primary interest code i%6 and a
// different secondary code; every 13th skill pairing is omitted so population means are used.
func NewData(opts Options) *reference.Data {
	d := &reference.Data{}

	for i := 0; i < models.SkillCount; i++ {
		d.Skills = append(d.Skills, models.SkillElement{
			ID:             SkillID(i),
			Name:           fmt.Sprintf("Skill %02d", i+1),
			Category:       []string{"Basic", "Social", "Technical", "Systems"}[i%4],
			TaskStatement:  fmt.Sprintf("Perform task %02d", i+1),
			AnchorLow:      "Follow simple instructions",
			AnchorHigh:     "Lead complex work",
			MeanImportance: 2.5 + float64(i%5)*0.25,
			MeanLevel:      3 + float64(i%4)*0.5,
		})
	}

	for i := 0; i < opts.Occupations; i++ {
		primary := models.InterestCodes[i%6]
		secondary := models.InterestCodes[(i%6+1+(i/6)%5)%6]

		scores := make(models.InterestScores, 6)
		for j, code := range models.InterestCodes {
			scores[code] = 1 + float64((i+j)%3)*0.5
		}
		scores[primary] = 7
		scores[secondary] = 5

		skills := make(map[string]models.SkillRequirement)
		for j := 0; j < models.SkillCount; j++ {
			if (i+j)%13 == 0 {
				continue
			}
			skills[SkillID(j)] = models.SkillRequirement{
				Importance: 1 + float64((i*7+j)%5),
				Level:      1 + float64((i*3+j*5)%7),
			}
		}

		var wage *float64
		if i%10 != 0 {
			w := 30000 + float64(i%37)*1500
			wage = &w
		}

		desc := fmt.Sprintf("Works in the %s field on task set %d.", primary.Name(), i)
		if i%7 == 0 {
			desc = ""
		}

		d.Occupations = append(d.Occupations, models.Occupation{
			Code:           OccupationCode(i),
			Title:          fmt.Sprintf("%s Occupation %03d", primary.Name(), i),
			Description:    desc,
			InterestScores: scores,
			Skills:         skills,
			MedianWage:     wage,
			Outlook:        outlooks[i%3],
			JobZone:        1 + i%5,
		})
	}

	for k := 0; k < opts.Programs; k++ {
		field := models.InterestCodes[k%6].Name()
		dur := durations[k%4]
		d.Programs = append(d.Programs, models.Program{
			ID:              ProgramID(k),
			Name:            fmt.Sprintf("%s Program %d", field, k),
			InstitutionID:   fmt.Sprintf("inst-%02d", k%5),
			InstitutionName: fmt.Sprintf("Institute %02d", k%5),
			DegreeType:      degreeTypes[(k/3)%3],
			DurationYears:   &dur,
			Location:        locations[k%3],
			URL:             fmt.Sprintf("https://example.edu/programs/%s", ProgramID(k)),
			Description:     fmt.Sprintf("Training in %s skills. Cohort %d.", field, k),
		})
	}

	if opts.Programs > 0 {
		for i := 0; i < opts.Occupations; i++ {
			first := i % opts.Programs
			second := (i*7 + 3) % opts.Programs
			d.Associations = append(d.Associations, reference.Association{
				OccupationCode: OccupationCode(i), ProgramID: ProgramID(first), Confidence: 0.9,
			})
			if second != first {
				d.Associations = append(d.Associations, reference.Association{
					OccupationCode: OccupationCode(i), ProgramID: ProgramID(second), Confidence: 0.6,
				})
			}
		}
	}

	for k, p := range d.Programs {
		meta := models.ChunkMetadata{
			DurationYears: p.DurationYears,
			DegreeType:    p.DegreeType,
			Location:      p.Location,
			InstitutionID: p.InstitutionID,
			SourceURL:     p.URL,
		}
		d.Chunks = append(d.Chunks, models.Chunk{
			ID:         "chunk-" + p.ID,
			EntityType: models.EntityProgram,
			EntityID:   p.ID,
			Text:       models.ProgramChunkText(p.Name, p.Description),
			Metadata:   meta,
		})
		if k%2 == 0 {
			d.Chunks = append(d.Chunks, models.Chunk{
				ID:         "chunk-" + p.ID + "-b",
				EntityType: models.EntityProgram,
				EntityID:   p.ID,
				Text:       p.Description,
				Metadata:   meta,
			})
		}
	}
	for _, o := range d.Occupations {
		d.Chunks = append(d.Chunks, models.Chunk{
			ID:         "chunk-occ-" + o.Code,
			EntityType: models.EntityOccupation,
			EntityID:   o.Code,
			Text:       strings.TrimSpace(o.Title + "\n\n" + o.Description),
			Metadata:   models.ChunkMetadata{SourceURL: "https://www.onetonline.org/link/summary/" + o.Code},
		})
	}
	for _, code := range models.InterestCodes {
		d.Chunks = append(d.Chunks, models.Chunk{
			ID:         "chunk-sector-" + string(code),
			EntityType: models.EntitySector,
			EntityID:   "sector-" + string(code),
			Text:       "Sector: " + code.Name(),
		})
	}

	if !opts.SkipEmbeddings {
		e := Embedder()
		for i := range d.Chunks {
			v, _ := e.Embed(context.Background(), d.Chunks[i].Text)
			d.Chunks[i].Embedding = v
		}
	}

	return d
}

// Snapshot builds a snapshot from the default fixture.
func Snapshot(t testing.TB) *reference.Snapshot {
	t.Helper()
	return SnapshotOf(t, NewData(DefaultOptions()))
}

func SnapshotOf(t testing.TB, d *reference.Data) *reference.Snapshot {
	t.Helper()
	snap, err := reference.NewSnapshot(d, 1, "fixture")
	if err != nil {
		t.Fatalf("build fixture snapshot: %v", err)
	}
	return snap
}

// StaticLoader serves fixed data, or Err when set.
type StaticLoader struct {
	Data  *reference.Data
	Err   error
	Calls int
}

func (l *StaticLoader) Name() string { return "static" }

func (l *StaticLoader) Load(ctx context.Context) (*reference.Data, error) {
	l.Calls++
	if l.Err != nil {
		return nil, l.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Data, nil
}

// Store returns a store already loaded with d.
func Store(t testing.TB, d *reference.Data) *reference.Store {
	t.Helper()
	s := reference.NewStore(&StaticLoader{Data: d}, logger.NewTestLogger(t))
	if _, err := s.Reload(context.Background()); err != nil {
		t.Fatalf("load fixture store: %v", err)
	}
	return s
}
