package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a malformed or missing request field.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a requested document scope does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUpstream indicates the model endpoint or index backend failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrNotification indicates an alert could not be dispatched.
	ErrNotification = errors.New("notification failed")

	// ErrReportBuild indicates a transcript could not be turned into a report.
	ErrReportBuild = errors.New("report build failed")

	// ErrNoDocuments indicates ingestion found nothing to index.
	ErrNoDocuments = errors.New("no documents found")

	// ErrNoIndex indicates no index snapshot has been built yet.
	ErrNoIndex = errors.New("no index available")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity of the given kind.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DocumentNotFound returns the error raised for an unknown document scope.
func DocumentNotFound(name string) error {
	return &NotFoundError{Kind: "document", Name: name}
}
