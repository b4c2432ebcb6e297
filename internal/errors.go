package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different classes of client errors
type ErrorType int

const (
	ErrInvalidUID ErrorType = iota
	ErrAuthFailed
	ErrSigningKeyRequired
	ErrRateLimit
	ErrNetworkTimeout
	ErrVideoNotFound
	ErrQuotaExceeded
	ErrInvalidResponse
	ErrReadinessTimeout
	ErrLocalSigning
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// StreamError represents a Cloudflare Stream API error with detailed information
type StreamError struct {
	Code       int                    `json:"code"`
	Message    string                 `json:"message"`
	Type       ErrorType              `json:"type"`
	Severity   ErrorSeverity          `json:"severity"`
	Endpoint   string                 `json:"endpoint,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *StreamError) Error() string {
	parts := []string{fmt.Sprintf("stream error (code: %d, type: %s)", e.Code, e.Type.String())}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a multi-line error message with all available information
func (e *StreamError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s Error", e.Severity.String(), e.Type.String()))

	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("Code: %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}

	if e.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("Endpoint: %s", e.Endpoint))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrInvalidUID:
		return "InvalidUID"
	case ErrAuthFailed:
		return "AuthFailed"
	case ErrSigningKeyRequired:
		return "SigningKeyRequired"
	case ErrRateLimit:
		return "RateLimit"
	case ErrNetworkTimeout:
		return "NetworkTimeout"
	case ErrVideoNotFound:
		return "VideoNotFound"
	case ErrQuotaExceeded:
		return "QuotaExceeded"
	case ErrInvalidResponse:
		return "InvalidResponse"
	case ErrReadinessTimeout:
		return "ReadinessTimeout"
	case ErrLocalSigning:
		return "LocalSigning"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewStreamError creates a new StreamError with a default suggestion and
// severity derived from the error type
func NewStreamError(code int, message string, errorType ErrorType) *StreamError {
	err := &StreamError{
		Code:     code,
		Message:  message,
		Type:     errorType,
		Severity: SeverityError,
		Context:  make(map[string]interface{}),
	}

	err.Suggestion = getDefaultSuggestion(errorType, code)
	err.Severity = getDefaultSeverity(errorType)

	return err
}

// WithSuggestion adds a custom suggestion to the error
func (e *StreamError) WithSuggestion(suggestion string) *StreamError {
	e.Suggestion = suggestion
	return e
}

// WithEndpoint adds the API endpoint path to the error
func (e *StreamError) WithEndpoint(endpoint string) *StreamError {
	e.Endpoint = endpoint
	return e
}

// WithContext adds context information to the error
func (e *StreamError) WithContext(key string, value interface{}) *StreamError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsReadinessTimeout reports whether err means the readiness poll exhausted
// its attempts without the download becoming ready. This is the defined
// "could not confirm in time" outcome and is distinct from a failed request.
func IsReadinessTimeout(err error) bool {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Type == ErrReadinessTimeout
	}
	return false
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError carrying the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// getDefaultSuggestion returns a default suggestion based on error type and code
func getDefaultSuggestion(errorType ErrorType, code int) string {
	switch errorType {
	case ErrInvalidUID:
		return "Provide the 32-character video UID shown in the Stream dashboard or returned by pull"
	case ErrAuthFailed:
		return "Check STREAMFETCH_AUTH_EMAIL and STREAMFETCH_AUTH_KEY, and that the token expiry does not exceed 24 hours"
	case ErrSigningKeyRequired:
		return "Create a signing key with 'streamfetch keys create' and set STREAMFETCH_SIGNING_KEY_ID and STREAMFETCH_PEM"
	case ErrRateLimit:
		return "The API is rate limiting this account, wait before retrying"
	case ErrNetworkTimeout:
		return "Check your internet connection and try again. Consider using a proxy if needed"
	case ErrVideoNotFound:
		return "Verify the video UID exists on this account and has not been deleted"
	case ErrQuotaExceeded:
		return "The account's storage minutes are exhausted, free up space or upgrade the plan"
	case ErrInvalidResponse:
		if code >= 500 {
			return "Server error occurred. Please try again later"
		}
		return "Unexpected response from the Stream API, the endpoint may have changed"
	case ErrReadinessTimeout:
		return "The download rendition was not ready in time, retry later or run without --wait and use the URL once packaging finishes"
	case ErrLocalSigning:
		return "Check that STREAMFETCH_PEM holds the RSA private key exactly as returned at key creation"
	default:
		return "Please check the error details and try again"
	}
}

// getDefaultSeverity returns the default severity for an error type
func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrRateLimit, ErrNetworkTimeout, ErrReadinessTimeout:
		return SeverityWarning
	case ErrInvalidUID, ErrAuthFailed, ErrSigningKeyRequired, ErrVideoNotFound:
		return SeverityError
	case ErrQuotaExceeded:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// Common error constructors for frequently used errors

// NewInvalidUIDError creates an error for malformed video UIDs
func NewInvalidUIDError(uid string, reason string) *StreamError {
	return NewStreamError(400, fmt.Sprintf("Invalid video UID: %s", reason), ErrInvalidUID).
		WithContext("uid", uid)
}

// NewAuthFailedError creates an error for rejected credentials or expiry bounds
func NewAuthFailedError(statusCode int, message string) *StreamError {
	return NewStreamError(statusCode, message, ErrAuthFailed)
}

// NewSigningKeyRequiredError creates an error for operations that need the
// signing credential but none is configured
func NewSigningKeyRequiredError(operation string) *StreamError {
	return NewStreamError(0, fmt.Sprintf("%s requires a signing key", operation), ErrSigningKeyRequired)
}

// NewReadinessTimeoutError creates the defined timeout result for the
// download readiness poll
func NewReadinessTimeoutError(uid string, attempts int) *StreamError {
	return NewStreamError(0, fmt.Sprintf("download for video %s not ready after %d status checks", uid, attempts), ErrReadinessTimeout).
		WithContext("uid", uid).
		WithContext("attempts", attempts)
}
