package reference_test

import (
	"testing"

	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/reference/referencetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallData() *reference.Data {
	return referencetest.NewData(referencetest.Options{Occupations: 12, Programs: 6, SkipEmbeddings: true})
}

func TestNewSnapshot_CanonicalSkillOrder(t *testing.T) {
	d := smallData()
	// Reverse the input order; the snapshot must not care.
	for i, j := 0, len(d.Skills)-1; i < j; i, j = i+1, j-1 {
		d.Skills[i], d.Skills[j] = d.Skills[j], d.Skills[i]
	}

	snap, err := reference.NewSnapshot(d, 7, "test")
	require.NoError(t, err)

	skills := snap.Skills()
	require.Len(t, skills, models.SkillCount)
	for i := 1; i < len(skills); i++ {
		assert.Less(t, skills[i-1].ID, skills[i].ID)
	}
	idx, ok := snap.SkillIndex(referencetest.SkillID(0))
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	assert.Equal(t, int64(7), snap.Version)
	assert.Equal(t, "test", snap.Source)
}

func TestNewSnapshot_Lookups(t *testing.T) {
	snap := referencetest.SnapshotOf(t, smallData())

	codes := snap.OccupationCodes()
	require.Len(t, codes, 12)
	for i := 1; i < len(codes); i++ {
		assert.Less(t, codes[i-1], codes[i])
	}

	occ, ok := snap.Occupation(referencetest.OccupationCode(3))
	require.True(t, ok)
	assert.Equal(t, referencetest.OccupationCode(3), occ.Code)

	_, ok = snap.Occupation("99-9999.99")
	assert.False(t, ok)

	p, ok := snap.Program(referencetest.ProgramID(2))
	require.True(t, ok)
	assert.Equal(t, referencetest.ProgramID(2), p.ID)

	conf, ok := snap.Association(referencetest.OccupationCode(0), referencetest.ProgramID(0))
	require.True(t, ok)
	assert.Equal(t, 0.9, conf)

	linked := snap.LinkedPrograms(referencetest.OccupationCode(0))
	assert.Contains(t, linked, referencetest.ProgramID(0))
	assert.IsIncreasing(t, linked)

	stats := snap.Stats()
	assert.Equal(t, models.SkillCount, stats.Skills)
	assert.Equal(t, 12, stats.Occupations)
	assert.Equal(t, 6, stats.Programs)
	assert.Equal(t, len(snap.Chunks()), stats.Chunks)
}

func TestNewSnapshot_RejectsBadData(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*reference.Data)
		wantErr string
	}{
		{"too few skills", func(d *reference.Data) { d.Skills = d.Skills[:39] }, "expected 40"},
		{"duplicate skill", func(d *reference.Data) { d.Skills[1].ID = d.Skills[0].ID }, "duplicate skill"},
		{"empty skill id", func(d *reference.Data) { d.Skills[5].ID = "" }, "empty id"},
		{"bad onet code", func(d *reference.Data) { d.Occupations[0].Code = "15-1252" }, "invalid O*NET code"},
		{"duplicate occupation", func(d *reference.Data) { d.Occupations[1].Code = d.Occupations[0].Code }, "duplicate occupation"},
		{"unknown skill ref", func(d *reference.Data) {
			d.Occupations[0].Skills["9.Z.99"] = models.SkillRequirement{Importance: 1, Level: 1}
		}, "unknown skill"},
		{"duplicate program", func(d *reference.Data) { d.Programs[1].ID = d.Programs[0].ID }, "duplicate program"},
		{"confidence out of range", func(d *reference.Data) { d.Associations[0].Confidence = 1.5 }, "outside [0,1]"},
		{"bad chunk entity", func(d *reference.Data) { d.Chunks[0].EntityType = "institution" }, "unknown entity type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := smallData()
			tt.mutate(d)
			_, err := reference.NewSnapshot(d, 1, "test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
