// Package reference holds the immutable reference data (skills, occupations, programs, corpus chunks)
// that every request reads, and the store that swaps in new snapshots on reload.
package reference

import (
	"fmt"
	"sort"
	"time"

	"pathfinder-workers/internal/models"
)

// Association links a program to an occupation with an alignment confidence in [0,1].
type Association struct {
	OccupationCode string  `json:"onetCode" yaml:"onet_code"`
	ProgramID      string  `json:"programId" yaml:"program_id"`
	Confidence     float64 `json:"confidence" yaml:"confidence"`
}

// Data is what a Loader produces before it is frozen into a Snapshot.
type Data struct {
	Skills       []models.SkillElement `yaml:"skills"`
	Occupations  []models.Occupation   `yaml:"occupations"`
	Programs     []models.Program      `yaml:"programs"`
	Associations []Association         `yaml:"associations"`
	Chunks       []models.Chunk        `yaml:"chunks"`
}

// Snapshot is read-only after construction. Callers must not mutate anything it returns.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Source   string

	skills          []models.SkillElement
	skillIndex      map[string]int
	occupations     map[string]*models.Occupation
	occupationCodes []string
	programs        map[string]*models.Program
	chunks          []models.Chunk
	associations    map[string]map[string]float64
	programLinks    map[string][]string
}

// NewSnapshot validates d and indexes it. Skills are put in canonical order (ascending element id).
func NewSnapshot(d *Data, version int64, source string) (*Snapshot, error) {
	if len(d.Skills) != models.SkillCount {
		return nil, fmt.Errorf("expected %d skill elements, got %d", models.SkillCount, len(d.Skills))
	}

	s := &Snapshot{
		Version:      version,
		LoadedAt:     time.Now().UTC(),
		Source:       source,
		skills:       make([]models.SkillElement, len(d.Skills)),
		skillIndex:   make(map[string]int, len(d.Skills)),
		occupations:  make(map[string]*models.Occupation, len(d.Occupations)),
		programs:     make(map[string]*models.Program, len(d.Programs)),
		associations: make(map[string]map[string]float64),
		programLinks: make(map[string][]string),
	}

	copy(s.skills, d.Skills)
	sort.Slice(s.skills, func(i, j int) bool { return s.skills[i].ID < s.skills[j].ID })
	for i, sk := range s.skills {
		if sk.ID == "" {
			return nil, fmt.Errorf("skill element %d has an empty id", i)
		}
		if _, dup := s.skillIndex[sk.ID]; dup {
			return nil, fmt.Errorf("duplicate skill element %s", sk.ID)
		}
		s.skillIndex[sk.ID] = i
	}

	for i := range d.Occupations {
		occ := d.Occupations[i]
		if !models.ValidOnetCode(occ.Code) {
			return nil, fmt.Errorf("occupation %q has an invalid O*NET code", occ.Code)
		}
		if _, dup := s.occupations[occ.Code]; dup {
			return nil, fmt.Errorf("duplicate occupation %s", occ.Code)
		}
		for id := range occ.Skills {
			if _, ok := s.skillIndex[id]; !ok {
				return nil, fmt.Errorf("occupation %s references unknown skill %s", occ.Code, id)
			}
		}
		s.occupations[occ.Code] = &occ
		s.occupationCodes = append(s.occupationCodes, occ.Code)
	}
	sort.Strings(s.occupationCodes)

	for i := range d.Programs {
		p := d.Programs[i]
		if p.ID == "" {
			return nil, fmt.Errorf("program %d has an empty id", i)
		}
		if _, dup := s.programs[p.ID]; dup {
			return nil, fmt.Errorf("duplicate program %s", p.ID)
		}
		s.programs[p.ID] = &p
	}

	for _, a := range d.Associations {
		if a.Confidence < 0 || a.Confidence > 1 {
			return nil, fmt.Errorf("association %s/%s confidence %.3f outside [0,1]", a.OccupationCode, a.ProgramID, a.Confidence)
		}
		byProgram, ok := s.associations[a.OccupationCode]
		if !ok {
			byProgram = make(map[string]float64)
			s.associations[a.OccupationCode] = byProgram
		}
		if _, seen := byProgram[a.ProgramID]; !seen {
			s.programLinks[a.OccupationCode] = append(s.programLinks[a.OccupationCode], a.ProgramID)
		}
		byProgram[a.ProgramID] = a.Confidence
	}
	for code := range s.programLinks {
		sort.Strings(s.programLinks[code])
	}

	s.chunks = make([]models.Chunk, len(d.Chunks))
	copy(s.chunks, d.Chunks)
	for i, c := range s.chunks {
		if _, ok := models.ParseEntityType(string(c.EntityType)); !ok {
			return nil, fmt.Errorf("chunk %s has unknown entity type %q", c.ID, c.EntityType)
		}
		if c.ID == "" {
			return nil, fmt.Errorf("chunk %d has an empty id", i)
		}
	}

	return s, nil
}

// Skills returns the skill elements in canonical order.
func (s *Snapshot) Skills() []models.SkillElement { return s.skills }

// SkillIndex is the canonical position of element id.
func (s *Snapshot) SkillIndex(id string) (int, bool) {
	i, ok := s.skillIndex[id]
	return i, ok
}

func (s *Snapshot) Skill(id string) (models.SkillElement, bool) {
	i, ok := s.skillIndex[id]
	if !ok {
		return models.SkillElement{}, false
	}
	return s.skills[i], true
}

func (s *Snapshot) Occupation(code string) (*models.Occupation, bool) {
	o, ok := s.occupations[code]
	return o, ok
}

// OccupationCodes lists every occupation code in ascending order.
func (s *Snapshot) OccupationCodes() []string { return s.occupationCodes }

func (s *Snapshot) Program(id string) (*models.Program, bool) {
	p, ok := s.programs[id]
	return p, ok
}

func (s *Snapshot) Chunks() []models.Chunk { return s.chunks }

// Association returns the program/occupation alignment confidence when one is recorded.
func (s *Snapshot) Association(occupationCode, programID string) (float64, bool) {
	c, ok := s.associations[occupationCode][programID]
	return c, ok
}

// LinkedPrograms lists program ids associated with an occupation, sorted.
func (s *Snapshot) LinkedPrograms(occupationCode string) []string {
	return s.programLinks[occupationCode]
}

// Stats summarises snapshot sizes.
type Stats struct {
	Version     int64     `json:"version"`
	LoadedAt    time.Time `json:"loadedAt"`
	Source      string    `json:"source"`
	Skills      int       `json:"skills"`
	Occupations int       `json:"occupations"`
	Programs    int       `json:"programs"`
	Chunks      int       `json:"chunks"`
}

func (s *Snapshot) Stats() Stats {
	return Stats{
		Version:     s.Version,
		LoadedAt:    s.LoadedAt,
		Source:      s.Source,
		Skills:      len(s.skills),
		Occupations: len(s.occupations),
		Programs:    len(s.programs),
		Chunks:      len(s.chunks),
	}
}
