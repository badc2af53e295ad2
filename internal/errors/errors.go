// internal/errors/errors.go
package errors

import (
	"fmt"
	"time"
)

// ErrInvalidRepoFormat is returned when a repository reference is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// IdentityError is returned when no stable identity can be derived for a target.
type IdentityError struct {
	Reason string
}

func (e *IdentityError) Error() string {
	return "cannot derive target identity: " + e.Reason
}

// FilesystemError is returned when a checkout root cannot be read.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error at %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// RemoteCallError is returned for a non-success API response.
type RemoteCallError struct {
	Verb       string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Verb, e.Path, e.StatusCode, e.Message)
}

// Retryable reports whether the call may succeed if repeated.
func (e *RemoteCallError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// TimeoutError is returned when an import job is still pending at the poll deadline.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.After)
}

// UnsupportedIntegrationError is returned for an unrecognized integration type.
type UnsupportedIntegrationError struct {
	Type string
}

func (e *UnsupportedIntegrationError) Error() string {
	return fmt.Sprintf("unsupported integration type %q", e.Type)
}

// CloneError carries the diagnostic of a failed repository clone.
type CloneError struct {
	URL        string
	Diagnostic string
}

func (e *CloneError) Error() string {
	return e.Diagnostic
}
