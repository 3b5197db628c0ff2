package reference

import (
	"context"
	"database/sql"
	"fmt"

	"pathfinder-workers/internal/models"

	"github.com/pgvector/pgvector-go"
)

// SQLiteSchema creates the reference tables for a local SQLite database. The Postgres schema is
// owned by migrations outside this service; column names and types line up with it.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS skill_elements (
	element_id      TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL,
	task_statement  TEXT NOT NULL,
	anchor_low      TEXT NOT NULL,
	anchor_high     TEXT NOT NULL,
	mean_importance REAL NOT NULL,
	mean_level      REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS occupations (
	onet_code          TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT,
	interest_r         REAL,
	interest_i         REAL,
	interest_a         REAL,
	interest_s         REAL,
	interest_e         REAL,
	interest_c         REAL,
	median_annual_wage REAL,
	employment_outlook TEXT,
	job_zone           INTEGER
);
CREATE TABLE IF NOT EXISTS occupation_skills (
	onet_code  TEXT NOT NULL REFERENCES occupations(onet_code),
	element_id TEXT NOT NULL REFERENCES skill_elements(element_id),
	importance REAL NOT NULL,
	level      REAL NOT NULL,
	PRIMARY KEY (onet_code, element_id)
);
CREATE TABLE IF NOT EXISTS programs (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	institution_id   TEXT,
	institution_name TEXT,
	degree_type      TEXT,
	duration_years   REAL,
	location         TEXT,
	program_url      TEXT,
	description      TEXT
);
CREATE TABLE IF NOT EXISTS program_occupation_association (
	program_id TEXT NOT NULL REFERENCES programs(id),
	onet_code  TEXT NOT NULL REFERENCES occupations(onet_code),
	confidence REAL NOT NULL,
	PRIMARY KEY (program_id, onet_code)
);
CREATE TABLE IF NOT EXISTS corpus_chunks (
	id             TEXT PRIMARY KEY,
	entity_type    TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	text           TEXT NOT NULL,
	embedding      TEXT,
	duration_years REAL,
	degree_type    TEXT,
	location       TEXT,
	institution_id TEXT,
	source_url     TEXT
);
`

// WriteSQLite creates the schema and inserts d in one transaction.
func WriteSQLite(ctx context.Context, db *sql.DB, d *Data) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, s := range d.Skills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO skill_elements VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Name, s.Category, s.TaskStatement, s.AnchorLow, s.AnchorHigh, s.MeanImportance, s.MeanLevel,
		); err != nil {
			return fmt.Errorf("insert skill %s: %w", s.ID, err)
		}
	}

	for _, o := range d.Occupations {
		var interest [6]interface{}
		for i, code := range models.InterestCodes {
			if v, ok := o.InterestScores[code]; ok {
				interest[i] = v
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO occupations VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.Code, o.Title, o.Description,
			interest[0], interest[1], interest[2], interest[3], interest[4], interest[5],
			o.MedianWage, o.Outlook, o.JobZone,
		); err != nil {
			return fmt.Errorf("insert occupation %s: %w", o.Code, err)
		}
		for id, req := range o.Skills {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO occupation_skills VALUES (?, ?, ?, ?)`,
				o.Code, id, req.Importance, req.Level,
			); err != nil {
				return fmt.Errorf("insert occupation skill %s/%s: %w", o.Code, id, err)
			}
		}
	}

	for _, p := range d.Programs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO programs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.InstitutionID, p.InstitutionName, p.DegreeType, p.DurationYears,
			p.Location, p.URL, p.Description,
		); err != nil {
			return fmt.Errorf("insert program %s: %w", p.ID, err)
		}
	}

	for _, a := range d.Associations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO program_occupation_association VALUES (?, ?, ?)`,
			a.ProgramID, a.OccupationCode, a.Confidence,
		); err != nil {
			return fmt.Errorf("insert association %s/%s: %w", a.OccupationCode, a.ProgramID, err)
		}
	}

	for _, c := range d.Chunks {
		var embedding interface{}
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding).String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO corpus_chunks VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, string(c.EntityType), c.EntityID, c.Text, embedding,
			c.Metadata.DurationYears, c.Metadata.DegreeType, c.Metadata.Location,
			c.Metadata.InstitutionID, c.Metadata.SourceURL,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}
