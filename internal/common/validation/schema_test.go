package validation

import (
	stderrors "errors"
	"testing"

	apperrors "pathfinder-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewDefaultValidator()
	require.NoError(t, err)
	return v
}

// ==========================
// Input schemas
// ==========================

func TestValidateInput(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name      string
		taskType  string
		doc       string
		wantValid bool
		wantField string
	}{
		{
			name:      "interest answers accepted",
			taskType:  "submit-interest",
			doc:       `{"responses":{"q01":"agree","q02":"neutral"},"processVar":"ignored"}`,
			wantValid: true,
		},
		{
			name:      "interest missing responses",
			taskType:  "submit-interest",
			doc:       `{"sessionId":"abcdefgh"}`,
			wantField: "responses",
		},
		{
			name:      "interest unknown answer",
			taskType:  "submit-interest",
			doc:       `{"responses":{"q01":"maybe"}}`,
			wantField: "responses.q01",
		},
		{
			name:      "interest non-positive completion time",
			taskType:  "submit-interest",
			doc:       `{"responses":{},"completionTimeSeconds":0}`,
			wantField: "completionTimeSeconds",
		},
		{
			name:      "triage short session id",
			taskType:  "get-skill-triage",
			doc:       `{"sessionId":"abc"}`,
			wantField: "sessionId",
		},
		{
			name:      "profile bad panel score",
			taskType:  "submit-skill-profile",
			doc:       `{"sessionId":"abcdefgh","panelInitialScores":{"2.A.1.a":1}}`,
			wantField: "panelInitialScores.2.A.1.a",
		},
		{
			name:      "profile refinement out of range",
			taskType:  "submit-skill-profile",
			doc:       `{"sessionId":"abcdefgh","panelInitialScores":{},"refinementRatings":{"2.A.1.a":4}}`,
			wantField: "refinementRatings.2.A.1.a",
		},
		{
			name:      "programs unknown filter",
			taskType:  "query-programs",
			doc:       `{"query":"nursing","filters":{"cost":1}}`,
			wantField: "filters",
		},
		{
			name:      "occupation code format",
			taskType:  "get-occupation",
			doc:       `{"onetCode":"151252"}`,
			wantField: "onetCode",
		},
		{
			name:      "unregistered task passes",
			taskType:  "not-registered",
			doc:       `{}`,
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.ValidateInput(tt.taskType, []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.NoError(t, res.ToError())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.wantField, res.Errors[0].Field)
		})
	}
}

func TestValidateInput_MalformedJSON(t *testing.T) {
	v := newValidator(t)
	_, err := v.ValidateInput("submit-interest", []byte(`{"responses":`))
	assert.Error(t, err)
}

func TestToError_CarriesFields(t *testing.T) {
	v := newValidator(t)
	res, err := v.ValidateInput("get-occupation", []byte(`{}`))
	require.NoError(t, err)

	verr := res.ToError()
	require.Error(t, verr)
	assert.True(t, stderrors.Is(verr, apperrors.ErrValidation))

	std := apperrors.AsStandard(verr)
	require.Len(t, std.Fields, 1)
	assert.Equal(t, "onetCode", std.Fields[0].Field)
	assert.Equal(t, "REQUIRED", std.Fields[0].Code)
}

// ==========================
// Output schemas
// ==========================

func TestValidateOutput(t *testing.T) {
	v := newValidator(t)

	good := map[string]interface{}{
		"sessionId":       "abcdefgh",
		"riasecScores":    map[string]float64{"R": 10, "I": 90, "A": 50, "S": 20, "E": 40, "C": 50},
		"topCodes":        []string{"I", "A", "C"},
		"riasecCode":      "IAC",
		"confidence":      0.0,
		"confidenceLevel": "low",
	}
	res, err := v.ValidateOutput("submit-interest", good)
	require.NoError(t, err)
	assert.True(t, res.Valid, "%+v", res.Errors)

	good["topCodes"] = []string{"I", "I", "C"}
	res, err = v.ValidateOutput("submit-interest", good)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}
