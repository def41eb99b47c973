// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrInvalidArgument is the root of every validation failure.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTrackNotFound is returned when a requested track is not part of the candidate list.
	ErrTrackNotFound = errors.New("track not found")

	// ErrQueueEmpty is returned when an operation requires a non-empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrInvalidIndex is returned when a queue index is out of bounds.
	ErrInvalidIndex = errors.New("invalid queue index")

	// ErrQueueLoadFailed is returned when the persisted queue could not be read after all retries.
	ErrQueueLoadFailed = errors.New("queue load failed")

	// ErrQueueNotFound is returned by repositories for an unknown queue id.
	ErrQueueNotFound = errors.New("queue not found")

	// ErrCoordinatorClosed is returned when a save is requested after the coordinator was closed.
	ErrCoordinatorClosed = errors.New("save coordinator closed")

	// ErrImageLoadCancelled resolves image futures whose request was cancelled before it started.
	ErrImageLoadCancelled = errors.New("image load cancelled")

	// ErrLoaderClosed resolves image futures submitted to, or pending in, a disposed loader.
	ErrLoaderClosed = errors.New("image loader closed")

	// ErrShutdownTimeout is returned when background workers did not stop in time.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrUnsupportedImage is returned when a file holds no decodable picture.
	ErrUnsupportedImage = errors.New("unsupported image")

	// ErrUnsupportedFormat is returned when a file is not a recognised audio format.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrScanCancelled is returned when a library scan is cancelled.
	ErrScanCancelled = errors.New("scan cancelled")

	// ErrScanInProgress is returned when a scan starts while another is running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// RepositoryError represents an error from a repository.
// This wraps persistence layer errors with additional context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "create", "replace_tracks")
	Type    string // Repository type (e.g., "queue", "stats")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repository %s.%s failed: %s: %v", e.Type, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{
		Op:      op,
		Type:    repoType,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a rejected argument. It always matches
// ErrInvalidArgument and, when set, the more specific Err as well.
type ValidationError struct {
	Field   string      // Field that failed validation
	Value   interface{} // Value that failed validation
	Message string      // Error message
	Err     error       // Specific sentinel (e.g., ErrInvalidIndex), may be nil
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap exposes ErrInvalidArgument and the specific sentinel to errors.Is.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidArgument}
	}
	return []error{ErrInvalidArgument, e.Err}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewIndexError creates a ValidationError for an index outside [0, length).
func NewIndexError(field string, index, length int) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   index,
		Message: fmt.Sprintf("must be in [0, %d)", length),
		Err:     ErrInvalidIndex,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "QueueService")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s.%s failed: %s: %v", e.Service, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
