// internal/workers/discovery/query-programs/models.go
package queryprograms

import "pathfinder-workers/internal/matching/assemble"

type Input struct {
	Query      string  `json:"query"`
	EntityType string  `json:"entityType,omitempty"`
	Filters    Filters `json:"filters"`
}

type Filters struct {
	MaxDuration *float64 `json:"maxDuration,omitempty"`
	Location    []string `json:"location,omitempty"`
	DegreeType  []string `json:"degreeType,omitempty"`
}

type Result struct {
	ChunkID         string            `json:"chunkId"`
	EntityType      string            `json:"entityType"`
	EntityID        string            `json:"entityId"`
	SourceURL       string            `json:"sourceUrl,omitempty"`
	Score           float64           `json:"score"`
	SemanticScore   float64           `json:"semanticScore"`
	StructuralScore float64           `json:"structuralScore"`
	TextPreview     string            `json:"textPreview"`
	Program         *assemble.Preview `json:"program,omitempty"`
}

type Output struct {
	Results        []Result `json:"results"`
	Degraded       bool     `json:"degraded"`
	DegradedReason string   `json:"degradedReason,omitempty"`
}
