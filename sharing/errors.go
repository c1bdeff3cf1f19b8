package sharing

import "fmt"

// ValidationError indicates malformed or incomplete input, such as a bad
// credential profile or inconsistent scan parameters. Fatal, never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a share, schema, or table the server does not know.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// SchemaMismatchError indicates the remote table schema or partition columns
// changed incompatibly since the scan plan was built. The in-flight query
// must fail; the caller re-plans against the live schema.
type SchemaMismatchError struct {
	Message string
}

func (e *SchemaMismatchError) Error() string { return e.Message }

// CredentialUnavailableError indicates a signed-URL issuance call failed or
// timed out. It fails only the specific file read that triggered it.
type CredentialUnavailableError struct {
	Message string
	// Cause is the underlying issuance failure, if any.
	Cause error
}

func (e *CredentialUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying issuance failure to errors.Is/As.
func (e *CredentialUnavailableError) Unwrap() error { return e.Cause }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchemaMismatch creates a SchemaMismatchError with a formatted message.
func ErrSchemaMismatch(format string, args ...interface{}) *SchemaMismatchError {
	return &SchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}

// ErrCredentialUnavailable creates a CredentialUnavailableError wrapping the
// issuance failure.
func ErrCredentialUnavailable(cause error, format string, args ...interface{}) *CredentialUnavailableError {
	return &CredentialUnavailableError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
