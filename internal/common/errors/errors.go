// Package errors provides the error taxonomy shared by the matching engine and its job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDataIntegrity ErrorCode = "DATA_INTEGRITY_ERROR"

	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeOccupationNotFound ErrorCode = "OCCUPATION_NOT_FOUND"
	ErrCodeAssessmentFinal    ErrorCode = "ASSESSMENT_ALREADY_FINALIZED"
	ErrCodeInterestSubmitted  ErrorCode = "INTEREST_ALREADY_SUBMITTED"

	ErrCodeSessionStoreFailed   ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeReferenceUnavailable ErrorCode = "REFERENCE_UNAVAILABLE"
	ErrCodeReferenceLoadFailed  ErrorCode = "REFERENCE_LOAD_FAILED"

	ErrCodeRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"
	ErrCodeEmbeddingFailed      ErrorCode = "EMBEDDING_FAILED"
	ErrCodeRefinementFailed     ErrorCode = "REFINEMENT_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// FieldError carries field-level detail for validation failures.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StandardError is the normalized error representation.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so sentinel-style checks work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// BPMNError is what a job failure looks like to the process engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 2. Constructors
// ==========================

// Sentinels for errors.Is comparisons.
var (
	ErrValidation      = &StandardError{Code: ErrCodeValidation}
	ErrDataIntegrity   = &StandardError{Code: ErrCodeDataIntegrity}
	ErrSessionNotFound = &StandardError{Code: ErrCodeSessionNotFound}
	ErrNotFound        = &StandardError{Code: ErrCodeOccupationNotFound}

	ErrInterestSubmitted = &StandardError{Code: ErrCodeInterestSubmitted}
)

func NewValidationError(message string, fields ...FieldError) *StandardError {
	details := make([]string, 0, len(fields))
	for _, f := range fields {
		details = append(details, f.Field+": "+f.Message)
	}
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   message,
		Details:   strings.Join(details, "; "),
		Retryable: false,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// Field is a shorthand for building a FieldError.
func Field(field, code, format string, args ...interface{}) FieldError {
	return FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NewDataIntegrityError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataIntegrity,
		Message:   "Reference data is missing an expected profile",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewOccupationNotFoundError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOccupationNotFound,
		Message:   "Occupation not found in reference data",
		Details:   fmt.Sprintf("onetCode: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAssessmentFinalizedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentFinal,
		Message:   "Skill assessment already finalized for session",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInterestSubmittedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInterestSubmitted,
		Message:   "Interest profile already submitted for session",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionStoreError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewReferenceUnavailableError() *StandardError {
	return &StandardError{
		Code:      ErrCodeReferenceUnavailable,
		Message:   "Reference data snapshot not loaded",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewReferenceLoadError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReferenceLoadFailed,
		Message:   "Failed to load reference data",
		Details:   fmt.Sprintf("source: %s, error: %v", source, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewRetrievalUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalUnavailable,
		Message:   "Vector retrieval unavailable",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewEmbeddingError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding request failed",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewRefinementError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRefinementFailed,
		Message:   "Refinement stage failed",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errString(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Classification
// ==========================

// AsStandard extracts a StandardError from the chain, or wraps err as internal.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the error code found in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed,
		ErrCodeReferenceLoadFailed:
		return 3
	case ErrCodeReferenceUnavailable:
		return 2
	default:
		return 0 // business errors are thrown, not retried
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if len(stdErr.Fields) > 0 {
		vars["errorFields"] = stdErr.Fields
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "INTEGRITY"):
		return "DATA_INTEGRITY"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "REFERENCE"):
		return "INFRASTRUCTURE"
	case strings.Contains(codeStr, "RETRIEVAL") || strings.Contains(codeStr, "EMBEDDING"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "REFINEMENT"):
		return "AI"
	case strings.Contains(codeStr, "FINALIZED") || strings.Contains(codeStr, "SUBMITTED"):
		return "CONFLICT"
	default:
		return "OTHER"
	}
}
