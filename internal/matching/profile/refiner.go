package profile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/models"
)

// RefineRequest carries the narrative and the panel skills still lacking a refinement rating.
type RefineRequest struct {
	Narrative string
	Skills    []models.SkillElement
	Panel     map[string]int
}

type Refinement struct {
	Ratings       map[string]int `json:"ratings"`
	Justification string         `json:"justification"`
}

// Refiner proposes refinement ratings (1..3) from free text.
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) (*Refinement, error)
	Name() string
}

// PassThrough proposes nothing.
type PassThrough struct{}

func (PassThrough) Refine(context.Context, RefineRequest) (*Refinement, error) { return nil, nil }

func (PassThrough) Name() string { return "pass-through" }

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptSource string

var promptTemplate = template.Must(template.New("refine").Parse(promptSource))

// LLMRefiner asks a language model to rate each skill against the narrative.
type LLMRefiner struct {
	generator contentGenerator
	timeout   time.Duration
}

func NewLLMRefiner(generator contentGenerator, timeout time.Duration) *LLMRefiner {
	return &LLMRefiner{generator: generator, timeout: timeout}
}

func (r *LLMRefiner) Name() string { return "llm" }

type promptSkill struct {
	ID            string
	Name          string
	TaskStatement string
	AnchorLow     string
	AnchorHigh    string
	Panel         int
}

func (r *LLMRefiner) Refine(ctx context.Context, req RefineRequest) (*Refinement, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	skills := make([]promptSkill, len(req.Skills))
	for i, sk := range req.Skills {
		skills[i] = promptSkill{
			ID:            sk.ID,
			Name:          sk.Name,
			TaskStatement: sk.TaskStatement,
			AnchorLow:     sk.AnchorLow,
			AnchorHigh:    sk.AnchorHigh,
			Panel:         req.Panel[sk.ID],
		}
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, map[string]interface{}{
		"Narrative": strings.TrimSpace(req.Narrative),
		"Skills":    skills,
	}); err != nil {
		return nil, apperrors.NewRefinementError(fmt.Errorf("render prompt: %w", err))
	}

	raw, err := r.generator.GenerateContent(ctx, buf.String())
	if err != nil {
		return nil, apperrors.NewRefinementError(err)
	}

	var out Refinement
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return nil, apperrors.NewRefinementError(fmt.Errorf("decode model response: %w", err))
	}
	return &out, nil
}

// stripCodeFence removes a ```json ... ``` wrapper that models sometimes add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
