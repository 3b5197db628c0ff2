package reference

import (
	"context"
	"database/sql"
	"fmt"

	"pathfinder-workers/internal/models"

	"github.com/pgvector/pgvector-go"
)

// SQLLoader reads the reference tables from Postgres or SQLite. Both dialects share the
// same schema; chunk embeddings are stored as pgvector text ("[0.1,0.2,...]") and parsed
// with pgvector either way.
type SQLLoader struct {
	db   *sql.DB
	name string

	// WithEmbeddings loads chunk vectors. The pgvector retrieval back-end does not need them in memory.
	WithEmbeddings bool
}

func NewSQLLoader(db *sql.DB, name string, withEmbeddings bool) *SQLLoader {
	return &SQLLoader{db: db, name: name, WithEmbeddings: withEmbeddings}
}

func (l *SQLLoader) Name() string { return l.name }

const (
	querySkills = `SELECT element_id, name, category, task_statement, anchor_low, anchor_high, mean_importance, mean_level
		FROM skill_elements ORDER BY element_id`

	queryOccupations = `SELECT onet_code, title, COALESCE(description, ''),
		interest_r, interest_i, interest_a, interest_s, interest_e, interest_c,
		median_annual_wage, COALESCE(employment_outlook, ''), COALESCE(job_zone, 0)
		FROM occupations ORDER BY onet_code`

	queryOccupationSkills = `SELECT onet_code, element_id, importance, level
		FROM occupation_skills ORDER BY onet_code, element_id`

	queryPrograms = `SELECT id, name, COALESCE(institution_id, ''), COALESCE(institution_name, ''),
		COALESCE(degree_type, ''), duration_years, COALESCE(location, ''), COALESCE(program_url, ''),
		COALESCE(description, '')
		FROM programs ORDER BY id`

	queryAssociations = `SELECT onet_code, program_id, confidence
		FROM program_occupation_association ORDER BY onet_code, program_id`

	queryChunksWithEmbedding = `SELECT id, entity_type, entity_id, text, embedding,
		duration_years, COALESCE(degree_type, ''), COALESCE(location, ''),
		COALESCE(institution_id, ''), COALESCE(source_url, '')
		FROM corpus_chunks ORDER BY id`

	queryChunksWithoutEmbedding = `SELECT id, entity_type, entity_id, text, NULL,
		duration_years, COALESCE(degree_type, ''), COALESCE(location, ''),
		COALESCE(institution_id, ''), COALESCE(source_url, '')
		FROM corpus_chunks ORDER BY id`
)

func (l *SQLLoader) Load(ctx context.Context) (*Data, error) {
	d := &Data{}
	var err error

	if d.Skills, err = l.loadSkills(ctx); err != nil {
		return nil, fmt.Errorf("load skill_elements: %w", err)
	}
	if d.Occupations, err = l.loadOccupations(ctx); err != nil {
		return nil, fmt.Errorf("load occupations: %w", err)
	}
	if err = l.loadOccupationSkills(ctx, d.Occupations); err != nil {
		return nil, fmt.Errorf("load occupation_skills: %w", err)
	}
	if d.Programs, err = l.loadPrograms(ctx); err != nil {
		return nil, fmt.Errorf("load programs: %w", err)
	}
	if d.Associations, err = l.loadAssociations(ctx); err != nil {
		return nil, fmt.Errorf("load program_occupation_association: %w", err)
	}
	if d.Chunks, err = l.loadChunks(ctx); err != nil {
		return nil, fmt.Errorf("load corpus_chunks: %w", err)
	}
	return d, nil
}

func (l *SQLLoader) loadSkills(ctx context.Context) ([]models.SkillElement, error) {
	rows, err := l.db.QueryContext(ctx, querySkills)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SkillElement
	for rows.Next() {
		var s models.SkillElement
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.TaskStatement, &s.AnchorLow, &s.AnchorHigh,
			&s.MeanImportance, &s.MeanLevel); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (l *SQLLoader) loadOccupations(ctx context.Context) ([]models.Occupation, error) {
	rows, err := l.db.QueryContext(ctx, queryOccupations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Occupation
	for rows.Next() {
		var (
			o        models.Occupation
			interest [6]sql.NullFloat64
			wage     sql.NullFloat64
		)
		if err := rows.Scan(&o.Code, &o.Title, &o.Description,
			&interest[0], &interest[1], &interest[2], &interest[3], &interest[4], &interest[5],
			&wage, &o.Outlook, &o.JobZone); err != nil {
			return nil, err
		}

		// NULL scores stay absent so the matcher can report the gap.
		o.InterestScores = make(models.InterestScores, len(models.InterestCodes))
		for i, code := range models.InterestCodes {
			if interest[i].Valid {
				o.InterestScores[code] = interest[i].Float64
			}
		}
		if wage.Valid {
			w := wage.Float64
			o.MedianWage = &w
		}
		o.Skills = make(map[string]models.SkillRequirement)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (l *SQLLoader) loadOccupationSkills(ctx context.Context, occupations []models.Occupation) error {
	byCode := make(map[string]*models.Occupation, len(occupations))
	for i := range occupations {
		byCode[occupations[i].Code] = &occupations[i]
	}

	rows, err := l.db.QueryContext(ctx, queryOccupationSkills)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code, elementID string
			req             models.SkillRequirement
		)
		if err := rows.Scan(&code, &elementID, &req.Importance, &req.Level); err != nil {
			return err
		}
		occ, ok := byCode[code]
		if !ok {
			return fmt.Errorf("skill row for unknown occupation %s", code)
		}
		occ.Skills[elementID] = req
	}
	return rows.Err()
}

func (l *SQLLoader) loadPrograms(ctx context.Context) ([]models.Program, error) {
	rows, err := l.db.QueryContext(ctx, queryPrograms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Program
	for rows.Next() {
		var (
			p        models.Program
			duration sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.InstitutionID, &p.InstitutionName, &p.DegreeType,
			&duration, &p.Location, &p.URL, &p.Description); err != nil {
			return nil, err
		}
		if duration.Valid {
			v := duration.Float64
			p.DurationYears = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *SQLLoader) loadAssociations(ctx context.Context) ([]Association, error) {
	rows, err := l.db.QueryContext(ctx, queryAssociations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.OccupationCode, &a.ProgramID, &a.Confidence); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (l *SQLLoader) loadChunks(ctx context.Context) ([]models.Chunk, error) {
	query := queryChunksWithoutEmbedding
	if l.WithEmbeddings {
		query = queryChunksWithEmbedding
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var (
			c          models.Chunk
			entityType string
			embedding  sql.NullString
			duration   sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &entityType, &c.EntityID, &c.Text, &embedding,
			&duration, &c.Metadata.DegreeType, &c.Metadata.Location,
			&c.Metadata.InstitutionID, &c.Metadata.SourceURL); err != nil {
			return nil, err
		}

		et, ok := models.ParseEntityType(entityType)
		if !ok {
			return nil, fmt.Errorf("chunk %s has unknown entity type %q", c.ID, entityType)
		}
		c.EntityType = et

		if embedding.Valid && embedding.String != "" {
			var v pgvector.Vector
			if err := v.Scan(embedding.String); err != nil {
				return nil, fmt.Errorf("chunk %s embedding: %w", c.ID, err)
			}
			c.Embedding = v.Slice()
		}
		if duration.Valid {
			d := duration.Float64
			c.Metadata.DurationYears = &d
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
