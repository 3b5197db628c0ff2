package retrieval

import "pathfinder-workers/internal/reference"

// StructuralRelevance scores how well a program fits an occupation, in [0,1].
// occupationCode is empty in free-text mode.
type StructuralRelevance interface {
	Score(snap *reference.Snapshot, occupationCode, programID string) float64
}

// ConstantRelevance returns the same value for every pair.
type ConstantRelevance struct {
	Value float64
}

func (c ConstantRelevance) Score(*reference.Snapshot, string, string) float64 {
	return c.Value
}

// AssociationRelevance returns the recorded program/occupation alignment confidence, or
// Default when the pair is not linked.
type AssociationRelevance struct {
	Default float64
}

func (a AssociationRelevance) Score(snap *reference.Snapshot, occupationCode, programID string) float64 {
	if occupationCode == "" || programID == "" {
		return a.Default
	}
	if c, ok := snap.Association(occupationCode, programID); ok {
		return c
	}
	return a.Default
}
