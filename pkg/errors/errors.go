// Package errors provides custom error types for the orgsync system.
// These errors enable programmatic error checking so that per-entity
// failures can be isolated and aggregated while systemic failures abort
// a run.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are re-exported so callers need a single errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the orgsync system
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient indicates a connection failure or 5xx response on an idempotent call
	ErrTransient = errors.New("transient network error")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrMutation indicates that a single upsert or delete failed
	ErrMutation = errors.New("mutation failed")

	// ErrIdentityConflict indicates duplicate target identities
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrConfiguration indicates missing or invalid configuration
	ErrConfiguration = errors.New("configuration error")

	// ErrUnauthorized indicates the remote rejected our credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPartialFailure indicates a run that completed with failed mutations
	ErrPartialFailure = errors.New("run completed with failures")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// EntityValidationError represents a malformed source record. The entity
// is skipped and the run continues.
type EntityValidationError struct {
	Kind    string
	ID      string
	Field   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *EntityValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	if e.Kind != "" {
		b.WriteString(e.Kind)
	} else {
		b.WriteString("entity")
	}
	if e.ID != "" {
		b.WriteString(" " + e.ID)
	}
	if e.Field != "" {
		b.WriteString(" field " + e.Field)
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

// Unwrap implements errors.Unwrap
func (e *EntityValidationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *EntityValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewEntityValidationError creates a new EntityValidationError
func NewEntityValidationError(kind, id, field, message string) *EntityValidationError {
	return &EntityValidationError{Kind: kind, ID: id, Field: field, Message: message}
}

// APIError represents an error response from the source or target system.
type APIError struct {
	System     string // "source" or "target"
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.System, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.System, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support. Connection failures (no status) and
// 5xx responses are transient; 404 is not found; 401/403 are auth errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(system string, statusCode int, message string) *APIError {
	return &APIError{
		System:     system,
		StatusCode: statusCode,
		Message:    message,
	}
}

// SnapshotTimeoutError is raised when the target never produced a snapshot
// within the polling budget. It is fatal to the run.
type SnapshotTimeoutError struct {
	RequestUUID string
	Budget      time.Duration
	Polls       int
}

// Error implements the error interface
func (e *SnapshotTimeoutError) Error() string {
	return fmt.Sprintf("snapshot %s not ready after %s (%d polls)", e.RequestUUID, e.Budget, e.Polls)
}

// Is implements errors.Is support
func (e *SnapshotTimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// MutationError records a single upsert or delete that failed after the
// allowed attempts.
type MutationError struct {
	Kind      string
	ID        string
	Operation string // "upsert" or "delete"
	Err       error
}

// Error implements the error interface
func (e *MutationError) Error() string {
	return fmt.Sprintf("%s of %s %s failed: %v", e.Operation, e.Kind, e.ID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *MutationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MutationError) Is(target error) bool {
	return target == ErrMutation
}

// ErrorKind classifies the underlying failure for reporting.
func (e *MutationError) ErrorKind() string {
	switch {
	case errors.Is(e.Err, ErrTransient):
		return "transient"
	case errors.Is(e.Err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(e.Err, ErrInvalidInput):
		return "validation"
	case errors.Is(e.Err, ErrCanceled), errors.Is(e.Err, context.Canceled), errors.Is(e.Err, ErrTimeout):
		return "canceled"
	default:
		return "rejected"
	}
}

// NewMutationError creates a new MutationError
func NewMutationError(kind, id, operation string, err error) *MutationError {
	return &MutationError{Kind: kind, ID: id, Operation: operation, Err: err}
}

// IdentityConflictError reports a target identity that is shared by more
// than one source entity. It is never auto-resolved by a run.
type IdentityConflictError struct {
	Identity string
	Details  []string
}

// Error implements the error interface
func (e *IdentityConflictError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("identity %s is duplicated: %s", e.Identity, strings.Join(e.Details, ", "))
	}
	return fmt.Sprintf("identity %s is duplicated", e.Identity)
}

// Is implements errors.Is support
func (e *IdentityConflictError) Is(target error) bool {
	return target == ErrIdentityConflict
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "graphql"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "lock", "rename"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "fetch", "read"
	Resource  string // "snapshot", "orgunit", "user", "page"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is an entity validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTransient checks if an error may succeed when retried
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsIdentityConflict checks if an error reports a duplicate identity
func IsIdentityConflict(err error) bool {
	return errors.Is(err, ErrIdentityConflict)
}

// IsSystemic reports whether an error must abort the whole run rather than
// be isolated to a single entity. Context errors are not matched; callers
// check their own context for cancellation.
func IsSystemic(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapAPI wraps a transport error as an APIError without a status code,
// which classifies it as transient.
func WrapAPI(system, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		System:   system,
		Endpoint: endpoint,
		Message:  err.Error(),
		Err:      err,
	}
}
