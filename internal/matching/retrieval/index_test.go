package retrieval_test

import (
	"context"
	"regexp"
	"testing"

	"pathfinder-workers/internal/matching/retrieval"
	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference/referencetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Filters
// ==========================

func TestFilters_Match(t *testing.T) {
	two := 2.0
	program := models.Chunk{
		EntityType: models.EntityProgram,
		Metadata:   models.ChunkMetadata{DurationYears: &two, DegreeType: "Associate", Location: "NY"},
	}
	sector := models.Chunk{EntityType: models.EntitySector}

	tests := []struct {
		name  string
		f     retrieval.Filters
		chunk models.Chunk
		want  bool
	}{
		{"no filters", retrieval.Filters{}, sector, true},
		{"duration within", retrieval.Filters{MaxDuration: floatPtr(2)}, program, true},
		{"duration exceeded", retrieval.Filters{MaxDuration: floatPtr(1.5)}, program, false},
		{"duration unknown", retrieval.Filters{MaxDuration: floatPtr(4)}, sector, false},
		{"location case-insensitive", retrieval.Filters{Locations: []string{"ny", "CA"}}, program, true},
		{"location miss", retrieval.Filters{Locations: []string{"TX"}}, program, false},
		{"degree", retrieval.Filters{DegreeTypes: []string{"associate"}}, program, true},
		{"entity type", retrieval.Filters{EntityType: models.EntityOccupation}, program, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Match(&tt.chunk))
		})
	}
}

// ==========================
// Memory index and keyword search
// ==========================

func TestMemoryIndex_TopKAfterFilter(t *testing.T) {
	snap := referencetest.Snapshot(t)
	q, err := referencetest.Embedder().Embed(context.Background(), "Realistic Occupation")
	require.NoError(t, err)

	hits, err := retrieval.NewMemoryIndex().Search(context.Background(), snap, q, 5,
		retrieval.Filters{EntityType: models.EntityOccupation})
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for i, h := range hits {
		assert.Equal(t, models.EntityOccupation, h.Chunk.EntityType)
		if i > 0 {
			assert.GreaterOrEqual(t, hits[i-1].Similarity, h.Similarity)
		}
	}
}

func TestMemoryKeywordSearcher(t *testing.T) {
	snap := referencetest.Snapshot(t)
	s := retrieval.NewMemoryKeywordSearcher()

	hits, err := s.Search(context.Background(), snap, "Sector: Investigative", 3, retrieval.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "chunk-sector-I", hits[0].Chunk.ID)
	assert.Equal(t, 1.0, hits[0].Similarity)

	hits, err = s.Search(context.Background(), snap, "!", 3, retrieval.Filters{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// ==========================
// Structural relevance
// ==========================

func TestAssociationRelevance(t *testing.T) {
	snap := referencetest.Snapshot(t)
	rel := retrieval.AssociationRelevance{Default: 0.4}
	code := referencetest.OccupationCode(2)

	assert.Equal(t, 1.0, rel.Score(snap, code, referencetest.ProgramID(2)))
	assert.Equal(t, 0.4, rel.Score(snap, code, referencetest.ProgramID(1)))
	assert.Equal(t, 0.4, rel.Score(snap, "", referencetest.ProgramID(2)))
	assert.Equal(t, 0.5, retrieval.ConstantRelevance{Value: 0.5}.Score(snap, code, "x"))
}

// ==========================
// pgvector index
// ==========================

func TestPGVectorIndex_PushesFiltersDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "text", "duration_years",
		"degree_type", "location", "institution_id", "source_url", "similarity"}).
		AddRow("chunk-a", "Program", "prog-a", "Program: A", 1.0, "Certificate", "CA", "inst-1", "https://a", 0.91).
		AddRow("chunk-b", "Program", "prog-b", "Program: B", nil, "", "", "", "", 0.42).
		AddRow("chunk-x", "Unknown", "x", "?", nil, "", "", "", "", 0.40)

	mock.ExpectQuery(regexp.QuoteMeta("lower(entity_type) = $2 AND duration_years <= $3 AND lower(location) = ANY($4) AND lower(degree_type) = ANY($5)")).
		WithArgs(sqlmock.AnyArg(), "program", 2.0, sqlmock.AnyArg(), sqlmock.AnyArg(), 20).
		WillReturnRows(rows)

	idx := retrieval.NewPGVectorIndex(db)
	hits, err := idx.Search(context.Background(), nil, []float32{0.6, 0.8}, 20, retrieval.Filters{
		EntityType:  models.EntityProgram,
		MaxDuration: floatPtr(2),
		Locations:   []string{"CA"},
		DegreeTypes: []string{"Certificate"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, models.EntityProgram, hits[0].Chunk.EntityType)
	assert.Equal(t, 0.91, hits[0].Similarity)
	require.NotNil(t, hits[0].Chunk.Metadata.DurationYears)
	assert.Equal(t, 1.0, *hits[0].Chunk.Metadata.DurationYears)
	assert.Nil(t, hits[1].Chunk.Metadata.DurationYears)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorIndex_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM corpus_chunks").WillReturnError(assert.AnError)

	_, err = retrieval.NewPGVectorIndex(db).Search(context.Background(), nil, []float32{1}, 5, retrieval.Filters{})
	assert.ErrorIs(t, err, assert.AnError)
}
