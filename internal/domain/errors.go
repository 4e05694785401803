package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches by code and message so wrapped instances compare equal to the sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeAccessDenied    = "ACCESS_DENIED"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidSourceType  = NewDomainError(ErrCodeValidation, "invalid source type")
	ErrInvalidAccessLevel = NewDomainError(ErrCodeValidation, "invalid access level")
	ErrInvalidRole        = NewDomainError(ErrCodeValidation, "invalid role")
	ErrInvalidMessageRole = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidEventType   = NewDomainError(ErrCodeValidation, "invalid learning event type")
	ErrEmptyContent       = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrEmptyQuery         = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrMissingOrgID       = NewDomainError(ErrCodeValidation, "organization ID is required")
	ErrMissingUserID      = NewDomainError(ErrCodeValidation, "user ID is required")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "knowledge document not found")
	ErrSessionNotFound  = NewDomainError(ErrCodeNotFound, "conversation session not found")
	ErrMessageNotFound  = NewDomainError(ErrCodeNotFound, "conversation message not found")
)

// Access errors. Read-side filtering is silent; only writes surface this.
var (
	ErrAccessLevelDenied = NewDomainError(ErrCodeAccessDenied, "role cannot write at this access level")
)

// External service errors
var (
	ErrEmbeddingUnavailable  = NewDomainError(ErrCodeExternalService, "embedding service unavailable")
	ErrGenerationUnavailable = NewDomainError(ErrCodeExternalService, "generation service unavailable")
	ErrToolExecutionFailed   = NewDomainError(ErrCodeExternalService, "tool execution failed")
	ErrSourceFetchFailed     = NewDomainError(ErrCodeExternalService, "failed to fetch document source")
)
