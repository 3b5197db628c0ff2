// internal/models/chunk.go
package models

import "strings"

// EntityType names the kind of reference entity a corpus chunk was cut from.
type EntityType string

const (
	EntityProgram    EntityType = "program"
	EntityOccupation EntityType = "occupation"
	EntitySector     EntityType = "sector"
)

// ParseEntityType normalizes "Program", "program" and friends.
func ParseEntityType(s string) (EntityType, bool) {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case EntityProgram:
		return EntityProgram, true
	case EntityOccupation:
		return EntityOccupation, true
	case EntitySector:
		return EntitySector, true
	}
	return "", false
}

type ChunkMetadata struct {
	DurationYears *float64 `json:"durationYears,omitempty" yaml:"duration_years"`
	DegreeType    string   `json:"degreeType,omitempty" yaml:"degree_type"`
	Location      string   `json:"location,omitempty" yaml:"location"`
	InstitutionID string   `json:"institutionId,omitempty" yaml:"institution_id"`
	SourceURL     string   `json:"sourceUrl,omitempty" yaml:"source_url"`
}

// Chunk is a unit of source text with its pre-computed embedding.
type Chunk struct {
	ID         string        `json:"id" yaml:"id"`
	EntityType EntityType    `json:"entityType" yaml:"entity_type"`
	EntityID   string        `json:"entityId" yaml:"entity_id"`
	Text       string        `json:"text" yaml:"text"`
	Embedding  []float32     `json:"-" yaml:"embedding"`
	Metadata   ChunkMetadata `json:"metadata" yaml:"metadata"`
}

// EntityKey identifies the source entity for de-duplication.
func (c *Chunk) EntityKey() string {
	return string(c.EntityType) + ":" + c.EntityID
}

// ProgramChunkText is the text layout used when programs are chunked for embedding.
func ProgramChunkText(name, description string) string {
	const maxDescription = 2000
	if len(description) > maxDescription {
		description = description[:maxDescription]
	}
	return "Program: " + name + "\n\n" + description
}
