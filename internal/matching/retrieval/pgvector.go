package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pathfinder-workers/internal/models"
	"pathfinder-workers/internal/reference"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PGVectorIndex runs cosine nearest-neighbour search in Postgres over corpus_chunks.embedding.
type PGVectorIndex struct {
	db *sql.DB
}

func NewPGVectorIndex(db *sql.DB) *PGVectorIndex {
	return &PGVectorIndex{db: db}
}

func (*PGVectorIndex) Name() string { return "pgvector" }

// buildQuery renders the search with filters pushed into the WHERE clause.
func buildQuery(query []float32, k int, f Filters) (string, []interface{}) {
	args := []interface{}{pgvector.NewVector(query).String()}
	where := []string{"embedding IS NOT NULL"}

	if f.EntityType != "" {
		args = append(args, string(f.EntityType))
		where = append(where, fmt.Sprintf("lower(entity_type) = $%d", len(args)))
	}
	if f.MaxDuration != nil {
		args = append(args, *f.MaxDuration)
		where = append(where, fmt.Sprintf("duration_years <= $%d", len(args)))
	}
	if len(f.Locations) > 0 {
		args = append(args, pq.Array(lowerAll(f.Locations)))
		where = append(where, fmt.Sprintf("lower(location) = ANY($%d)", len(args)))
	}
	if len(f.DegreeTypes) > 0 {
		args = append(args, pq.Array(lowerAll(f.DegreeTypes)))
		where = append(where, fmt.Sprintf("lower(degree_type) = ANY($%d)", len(args)))
	}
	args = append(args, k)

	q := `SELECT id, entity_type, entity_id, text, duration_years,
		COALESCE(degree_type, ''), COALESCE(location, ''), COALESCE(institution_id, ''), COALESCE(source_url, ''),
		1 - (embedding <=> $1::vector) AS similarity
		FROM corpus_chunks
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> $1::vector, id
		LIMIT $` + fmt.Sprint(len(args))
	return q, args
}

func (p *PGVectorIndex) Search(ctx context.Context, _ *reference.Snapshot, query []float32, k int, f Filters) ([]Hit, error) {
	q, args := buildQuery(query, k, f)

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h          Hit
			entityType string
			duration   sql.NullFloat64
		)
		if err := rows.Scan(&h.Chunk.ID, &entityType, &h.Chunk.EntityID, &h.Chunk.Text, &duration,
			&h.Chunk.Metadata.DegreeType, &h.Chunk.Metadata.Location, &h.Chunk.Metadata.InstitutionID,
			&h.Chunk.Metadata.SourceURL, &h.Similarity); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		et, ok := models.ParseEntityType(entityType)
		if !ok {
			continue
		}
		h.Chunk.EntityType = et
		if duration.Valid {
			d := duration.Float64
			h.Chunk.Metadata.DurationYears = &d
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector rows: %w", err)
	}
	return hits, nil
}
