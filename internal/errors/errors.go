package errors

import (
	"errors"
	"fmt"
)

// IndexError is the structured error type for artifactidx.
// It provides rich context for error handling, logging, and user presentation.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_206_REPOSITORY_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() against the sentinel values below.
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *IndexError) WithSuggestion(suggestion string) *IndexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IndexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexError from an existing error.
// The error's message becomes the IndexError message.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrRepositoryNotFound = &IndexError{Code: ErrCodeRepositoryNotFound}
	ErrIncompatibleIndex  = &IndexError{Code: ErrCodeIncompatibleIndex}
	ErrStaging            = &IndexError{Code: ErrCodeStagingFailed}
	ErrScan               = &IndexError{Code: ErrCodeScanFailed}
	ErrInvalidQuery       = &IndexError{Code: ErrCodeInvalidQuery}
	ErrDigestUnavailable  = &IndexError{Code: ErrCodeDigestUnavailable}
	ErrDuplicateID        = &IndexError{Code: ErrCodeDuplicateID}
	ErrUnsupported        = &IndexError{Code: ErrCodeUnsupported}
	ErrContextNotFound    = &IndexError{Code: ErrCodeContextNotFound}
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *IndexError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *IndexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IndexError {
	return New(ErrCodeInternal, message, cause)
}

// RepositoryNotFoundError reports a repository root that does not exist on disk.
func RepositoryNotFoundError(path string) *IndexError {
	return New(ErrCodeRepositoryNotFound, fmt.Sprintf("repository not found: %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("Check the repository path configured for the context")
}

// IncompatibleIndexError reports an existing index that cannot be reused.
func IncompatibleIndexError(path string, cause error) *IndexError {
	return New(ErrCodeIncompatibleIndex, fmt.Sprintf("incompatible index at %s", path), cause).
		WithDetail("path", path).
		WithSuggestion("Add the context with force to discard and recreate the index")
}

// StagingError reports a failure to create the temporary area of a rescan.
func StagingError(path string, cause error) *IndexError {
	return New(ErrCodeStagingFailed, fmt.Sprintf("cannot create staging area %s", path), cause).
		WithDetail("path", path)
}

// ScanError wraps any failure that aborted a rescan of the given context.
func ScanError(contextID string, cause error) *IndexError {
	return New(ErrCodeScanFailed, fmt.Sprintf("error scanning context %s", contextID), cause).
		WithDetail("context_id", contextID)
}

// InvalidQueryError reports query text that cannot be parsed or applied.
func InvalidQueryError(message string, cause error) *IndexError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// DigestUnavailableError reports that the hash algorithm needed for identification is missing.
func DigestUnavailableError(algorithm string) *IndexError {
	return New(ErrCodeDigestUnavailable, fmt.Sprintf("digest algorithm %s unavailable", algorithm), nil).
		WithDetail("algorithm", algorithm)
}

// DuplicateIDError reports an attempt to register a context id that is already taken.
func DuplicateIDError(id string) *IndexError {
	return New(ErrCodeDuplicateID, fmt.Sprintf("context %q already registered", id), nil).
		WithDetail("context_id", id)
}

// UnsupportedError reports an operation the target does not support.
func UnsupportedError(operation, target string) *IndexError {
	return New(ErrCodeUnsupported, fmt.Sprintf("%s not supported by %s", operation, target), nil).
		WithDetail("operation", operation)
}

// ContextNotFoundError reports an unknown context id.
func ContextNotFoundError(id string) *IndexError {
	return New(ErrCodeContextNotFound, fmt.Sprintf("context %q not found", id), nil).
		WithDetail("context_id", id).
		WithSuggestion("Run 'artifactidx contexts' to list registered contexts")
}

// IsRetryable checks if an error is retryable.
// Returns true if any IndexError in the chain has the Retryable flag set.
func IsRetryable(err error) bool {
	for err != nil {
		if ie, ok := err.(*IndexError); ok && ie.Retryable {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the outermost IndexError.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from the outermost IndexError.
func GetCategory(err error) Category {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}
