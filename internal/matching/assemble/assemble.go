// Package assemble attaches preview programs to ranked occupations.
package assemble

import (
	"context"
	"strings"

	"pathfinder-workers/internal/common/config"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/matching/occupation"
	"pathfinder-workers/internal/matching/retrieval"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
)

const previewRunes = 160

type Config struct {
	HomeLocations []string
	Previews      int
}

func DefaultConfig() Config {
	return Config{Previews: 3}
}

func FromConfig(c config.RetrievalConfig) Config {
	return Config{HomeLocations: c.HomeLocations, Previews: c.PreviewPrograms}
}

// Preview is a hydrated program returned alongside an occupation or a search result.
type Preview struct {
	ProgramID       string   `json:"programId"`
	Name            string   `json:"name"`
	InstitutionName string   `json:"institutionName"`
	DegreeType      string   `json:"degreeType"`
	DurationYears   *float64 `json:"durationYears,omitempty"`
	Location        string   `json:"location"`
	URL             string   `json:"programUrl"`
	TextPreview     string   `json:"textPreview"`
	IsLocal         bool     `json:"isLocal"`
	Score           float64  `json:"score"`
	SourceChunkID   string   `json:"sourceChunkId"`
}

type RankedOccupation struct {
	occupation.Match
	Programs []Preview `json:"previewPrograms"`
}

type Assembler struct {
	engine *retrieval.Engine
	cfg    Config
	logger logger.Logger
}

func NewAssembler(engine *retrieval.Engine, cfg Config, log logger.Logger) *Assembler {
	if cfg.Previews <= 0 {
		cfg.Previews = 3
	}
	return &Assembler{engine: engine, cfg: cfg, logger: log}
}

// Assemble runs one occupation-anchored program query per match. The returned flag is
// true when any lookup was answered by the keyword fallback.
func (a *Assembler) Assemble(ctx context.Context, snap *reference.Snapshot, matches []occupation.Match) ([]RankedOccupation, bool, error) {
	out := make([]RankedOccupation, 0, len(matches))
	degraded := false

	for _, m := range matches {
		resp, err := a.engine.SearchOccupation(ctx, snap, m.Code, retrieval.Filters{EntityType: models.EntityProgram})
		if err != nil {
			return nil, false, err
		}
		if resp.Degraded {
			degraded = true
		}

		out = append(out, RankedOccupation{
			Match:    m,
			Programs: a.pick(snap, resp.Results),
		})
	}
	return out, degraded, nil
}

// pick keeps the engine's order within local and non-local programs, local first.
func (a *Assembler) pick(snap *reference.Snapshot, results []retrieval.Result) []Preview {
	var local, remote []Preview
	for _, r := range results {
		p, ok := Hydrate(snap, r, a.cfg.HomeLocations)
		if !ok {
			a.logger.Debug("dropping result without program record", map[string]interface{}{
				"chunkId":  r.ChunkID,
				"entityId": r.EntityID,
			})
			continue
		}
		if p.IsLocal {
			local = append(local, p)
		} else {
			remote = append(remote, p)
		}
	}

	previews := append(local, remote...)
	if len(previews) > a.cfg.Previews {
		previews = previews[:a.cfg.Previews]
	}
	if previews == nil {
		previews = []Preview{}
	}
	return previews
}

// Hydrate fills a preview from the snapshot's program record. It reports false for
// non-program results and unknown programs.
func Hydrate(snap *reference.Snapshot, r retrieval.Result, homeLocations []string) (Preview, bool) {
	if r.EntityType != models.EntityProgram {
		return Preview{}, false
	}
	p, ok := snap.Program(r.EntityID)
	if !ok {
		return Preview{}, false
	}

	return Preview{
		ProgramID:       p.ID,
		Name:            p.Name,
		InstitutionName: p.InstitutionName,
		DegreeType:      p.DegreeType,
		DurationYears:   p.DurationYears,
		Location:        p.Location,
		URL:             p.URL,
		TextPreview:     truncate(r.Chunk.Text, previewRunes),
		IsLocal:         IsLocal(p.Location, homeLocations),
		Score:           r.Score,
		SourceChunkID:   r.ChunkID,
	}, true
}

// IsLocal reports whether location is one of the home locations, ignoring case.
func IsLocal(location string, homeLocations []string) bool {
	location = strings.TrimSpace(location)
	if location == "" {
		return false
	}
	for _, h := range homeLocations {
		if strings.EqualFold(strings.TrimSpace(h), location) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
