// Package errors provides the structured error type shared by the pipeline,
// its HTTP surface and the BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// Source adapter failures. These never escape a read; they are recorded as
// degradations on the view.
const (
	ErrCodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"
	ErrCodeAdapterTimeout     ErrorCode = "ADAPTER_TIMEOUT"
	ErrCodeRoundsNotFound     ErrorCode = "ROUNDS_NOT_FOUND"
	ErrCodeMalformedRecord    ErrorCode = "MALFORMED_RECORD"
)

// Reconciliation outcomes recorded on excluded records.
const (
	ErrCodeLinkageAmbiguous      ErrorCode = "LINKAGE_AMBIGUOUS"
	ErrCodeLinkageUnresolved     ErrorCode = "LINKAGE_UNRESOLVED"
	ErrCodeConflictingVocabulary ErrorCode = "CONFLICTING_VOCABULARY"
)

// Caller-visible failures.
const (
	ErrCodeInvalidMutation      ErrorCode = "INVALID_MUTATION"
	ErrCodeInvalidQuery         ErrorCode = "INVALID_QUERY"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeBackendWriteFailed   ErrorCode = "BACKEND_WRITE_FAILED"
	ErrCodeProvisionInProgress  ErrorCode = "PROVISION_IN_PROGRESS"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_PUBLISH_FAILED"
	ErrCodeDatabaseConnection   ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeIllegalTransition    ErrorCode = "ILLEGAL_STATUS_TRANSITION"
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
)

// StandardError is a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// AsStandardError unwraps err to a *StandardError if one is in its chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is an error that can be thrown to the workflow engine.
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

// ToErrorVariables returns a map suitable for job fail/throw variables.
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
// 3. Error Constructors
// ==========================

// NewAdapterUnavailableError reports a source feed that could not be reached.
func NewAdapterUnavailableError(source string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeAdapterUnavailable,
		fmt.Sprintf("Source '%s' unavailable", source), details, true, err).
		WithMetadata("source", source)
}

// NewAdapterTimeoutError reports a source feed that exceeded its deadline.
func NewAdapterTimeoutError(source string, timeout time.Duration) *StandardError {
	return newError(ErrCodeAdapterTimeout,
		fmt.Sprintf("Source '%s' timed out", source),
		fmt.Sprintf("timeout: %s", timeout), true, nil).
		WithMetadata("source", source)
}

// NewRoundsNotFoundError reports that a job has no round definitions.
func NewRoundsNotFoundError(jobID string) *StandardError {
	return newError(ErrCodeRoundsNotFound, "No rounds defined for job",
		fmt.Sprintf("jobId: %s", jobID), false, nil)
}

// NewMalformedRecordError reports a record that could not be normalized.
func NewMalformedRecordError(source, details string) *StandardError {
	return newError(ErrCodeMalformedRecord,
		fmt.Sprintf("Malformed record from '%s'", source), details, false, nil).
		WithMetadata("source", source)
}

func NewLinkageAmbiguousError(recordID string, candidates []string) *StandardError {
	return newError(ErrCodeLinkageAmbiguous, "Record matches more than one round",
		fmt.Sprintf("record: %s, rounds: %s", recordID, strings.Join(candidates, ",")), false, nil).
		WithMetadata("rounds", candidates)
}

func NewLinkageUnresolvedError(recordID, details string) *StandardError {
	return newError(ErrCodeLinkageUnresolved, "Record could not be linked",
		fmt.Sprintf("record: %s, %s", recordID, details), false, nil)
}

func NewConflictingVocabularyError(value string) *StandardError {
	return newError(ErrCodeConflictingVocabulary, "Unrecognized decision value",
		fmt.Sprintf("value: %q", value), false, nil)
}

// NewInvalidMutationError lists every missing or invalid field at once.
func NewInvalidMutationError(kind string, problems []string) *StandardError {
	sorted := append([]string(nil), problems...)
	sort.Strings(sorted)
	return newError(ErrCodeInvalidMutation,
		fmt.Sprintf("Invalid %s command", kind),
		strings.Join(sorted, "; "), false, nil).
		WithMetadata("fields", sorted)
}

func NewInvalidQueryError(details string) *StandardError {
	return newError(ErrCodeInvalidQuery, "Nothing to query", details, false, nil)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false, nil)
}

// NewBackendWriteFailedError reports a failed write to the backing store.
func NewBackendWriteFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeBackendWriteFailed,
		fmt.Sprintf("Backend write '%s' failed", operation), errString(err), true, err).
		WithMetadata("operation", operation)
}

func NewProvisionInProgressError(jobID string) *StandardError {
	return newError(ErrCodeProvisionInProgress, "Round provisioning already running",
		fmt.Sprintf("jobId: %s", jobID), true, nil)
}

func NewIllegalTransitionError(from, to string) *StandardError {
	return newError(ErrCodeIllegalTransition, "Illegal interview status transition",
		fmt.Sprintf("%s -> %s", from, to), false, nil)
}

func NewUnsupportedOperationError(operation string) *StandardError {
	return newError(ErrCodeUnsupportedOperation, "Unsupported operation",
		fmt.Sprintf("operation: %s", operation), false, nil)
}

func NewNotificationFailedError(err error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Publishing notification failed",
		errString(err), true, err)
}

func NewDatabaseConnectionError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnection, "Database connection error",
		errString(err), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errString(err), false, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Retry & Category Policy
// ==========================

// BPMNErrorMapping maps internal codes to BPMN error codes where they differ.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidMutation:    "PIPELINE_INVALID_MUTATION",
	ErrCodeInvalidQuery:       "PIPELINE_INVALID_QUERY",
	ErrCodeInvalidInput:       "PIPELINE_INVALID_INPUT",
	ErrCodeRoundsNotFound:     "PIPELINE_ROUNDS_NOT_FOUND",
	ErrCodeBackendWriteFailed: "PIPELINE_WRITE_FAILED",
	ErrCodeIllegalTransition:  "PIPELINE_ILLEGAL_TRANSITION",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeAdapterUnavailable,
		ErrCodeBackendWriteFailed,
		ErrCodeDatabaseConnection,
		ErrCodeNotificationFailed:
		return 3

	case ErrCodeAdapterTimeout,
		ErrCodeProvisionInProgress:
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if fields, ok := stdErr.Metadata["fields"]; ok {
		vars["invalidFields"] = fields
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "ADAPTER") || code == ErrCodeRoundsNotFound:
		return "SOURCE"
	case strings.HasPrefix(codeStr, "LINKAGE") || code == ErrCodeConflictingVocabulary || code == ErrCodeMalformedRecord:
		return "RECONCILIATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "BACKEND") || strings.Contains(codeStr, "PROVISION"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.HasPrefix(codeStr, "INVALID") || strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
