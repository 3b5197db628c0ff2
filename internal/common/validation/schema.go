// Package validation checks job variables against the JSON schemas declared in the activity registry.
package validation

import (
	"fmt"
	"sort"
	"strings"

	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ToError converts a failed result into a VALIDATION_ERROR carrying field detail. Nil when valid.
func (r *ValidationResult) ToError() error {
	if r == nil || r.Valid {
		return nil
	}
	fields := make([]apperrors.FieldError, 0, len(r.Errors))
	for _, e := range r.Errors {
		fields = append(fields, apperrors.FieldError{Field: e.Field, Message: e.Message, Code: e.Code})
	}
	return apperrors.NewValidationError("job variables failed schema validation", fields...)
}

// Validator holds compiled input and output schemas keyed by task type.
type Validator struct {
	inputs  map[string]*gojsonschema.Schema
	outputs map[string]*gojsonschema.Schema
}

func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{
		inputs:  make(map[string]*gojsonschema.Schema),
		outputs: make(map[string]*gojsonschema.Schema),
	}

	for _, a := range reg.Activities {
		if len(a.InputSchema) > 0 {
			s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
			if err != nil {
				return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
			}
			v.inputs[a.TaskType] = s
		}
		if len(a.OutputSchema) > 0 {
			s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.OutputSchema))
			if err != nil {
				return nil, fmt.Errorf("compile output schema for %s: %w", a.TaskType, err)
			}
			v.outputs[a.TaskType] = s
		}
	}

	return v, nil
}

// NewDefaultValidator compiles the embedded registry.
func NewDefaultValidator() (*Validator, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	return NewValidator(reg)
}

// ValidateInput checks raw job variables (a JSON document) for taskType.
// Task types without a schema always pass.
func (v *Validator) ValidateInput(taskType string, document []byte) (*ValidationResult, error) {
	return validate(v.inputs[taskType], gojsonschema.NewBytesLoader(document))
}

// ValidateOutput checks a Go value before it is sent back as job variables.
func (v *Validator) ValidateOutput(taskType string, output interface{}) (*ValidationResult, error) {
	return validate(v.outputs[taskType], gojsonschema.NewGoLoader(output))
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	if schema == nil {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldOf(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Valid: false, Errors: errs}, nil
}

// fieldOf names the offending field. Required-property errors report the parent,
// so the missing property is appended.
func fieldOf(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() != "required" {
		return field
	}
	prop, ok := desc.Details()["property"].(string)
	if !ok {
		return field
	}
	if field == "(root)" {
		return prop
	}
	return field + "." + prop
}
