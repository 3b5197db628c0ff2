package retrieval

import (
	"strings"

	"pathfinder-workers/internal/models"
)

// Filters restrict candidate chunks before any ranking. Empty fields do not filter.
type Filters struct {
	MaxDuration *float64
	Locations   []string
	DegreeTypes []string
	EntityType  models.EntityType
}

// Match reports whether c passes every set filter. A chunk without a duration fails a
// duration filter; string comparisons ignore case.
func (f Filters) Match(c *models.Chunk) bool {
	if f.EntityType != "" && c.EntityType != f.EntityType {
		return false
	}
	if f.MaxDuration != nil {
		if c.Metadata.DurationYears == nil || *c.Metadata.DurationYears > *f.MaxDuration {
			return false
		}
	}
	if len(f.Locations) > 0 && !containsFold(f.Locations, c.Metadata.Location) {
		return false
	}
	if len(f.DegreeTypes) > 0 && !containsFold(f.DegreeTypes, c.Metadata.DegreeType) {
		return false
	}
	return true
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.MaxDuration == nil && len(f.Locations) == 0 && len(f.DegreeTypes) == 0 && f.EntityType == ""
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
