package model

import (
	"context"
	"errors"
	"fmt"
)

// EmptyInputError is returned when text that must carry content is blank.
type EmptyInputError struct {
	Field string
}

func (e EmptyInputError) Error() string {
	return fmt.Sprintf("%s is empty", e.Field)
}

// IsEmptyInputError checks if an error is an EmptyInputError (including wrapped errors)
func IsEmptyInputError(err error) bool {
	var ee EmptyInputError
	return errors.As(err, &ee)
}

// ValidationError represents a caller-fixable input error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || IsEmptyInputError(err)
}

// AlreadyExistsError guards create-once resources.
type AlreadyExistsError struct {
	Resource string
	ID       string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

// IsAlreadyExistsError checks if error is AlreadyExistsError
func IsAlreadyExistsError(err error) bool {
	var ae AlreadyExistsError
	return errors.As(err, &ae)
}

// NotFoundError represents a missing resource such as a knowledge base.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IsNotFoundError checks if error is NotFoundError
func IsNotFoundError(err error) bool {
	var ne NotFoundError
	return errors.As(err, &ne)
}

// TranslationError wraps a failed query translation.
type TranslationError struct {
	Err error
}

func (e TranslationError) Error() string { return "translation failed: " + e.Err.Error() }
func (e TranslationError) Unwrap() error { return e.Err }

// IsTranslationError checks if error is TranslationError
func IsTranslationError(err error) bool {
	var te TranslationError
	return errors.As(err, &te)
}

// CollaboratorError is an upstream dependency failure.
type CollaboratorError struct {
	Call string
	Err  error
}

func (e CollaboratorError) Error() string { return fmt.Sprintf("%s failed: %v", e.Call, e.Err) }
func (e CollaboratorError) Unwrap() error { return e.Err }

// IsCollaboratorError reports collaborator failures, timeouts included.
func IsCollaboratorError(err error) bool {
	var ce CollaboratorError
	return errors.As(err, &ce) || IsCollaboratorTimeout(err)
}

// CollaboratorTimeoutError is an upstream call that hit its deadline.
type CollaboratorTimeoutError struct {
	Call string
	Err  error
}

func (e CollaboratorTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Call, e.Err)
}
func (e CollaboratorTimeoutError) Unwrap() error { return e.Err }

// IsCollaboratorTimeout checks if error is CollaboratorTimeoutError
func IsCollaboratorTimeout(err error) bool {
	var te CollaboratorTimeoutError
	return errors.As(err, &te)
}

// GenerationError is a failed generation surfaced as-is to the caller.
type GenerationError struct {
	Err error
}

func (e GenerationError) Error() string { return "generation failed: " + e.Err.Error() }
func (e GenerationError) Unwrap() error { return e.Err }

// IsGenerationError checks if error is GenerationError
func IsGenerationError(err error) bool {
	var ge GenerationError
	return errors.As(err, &ge)
}

// ConcurrencyRaceError is returned when a session stays busy past the wait window.
type ConcurrencyRaceError struct {
	Key string
}

func (e ConcurrencyRaceError) Error() string {
	return fmt.Sprintf("session %s is busy", e.Key)
}

// IsConcurrencyRaceError checks if error is ConcurrencyRaceError
func IsConcurrencyRaceError(err error) bool {
	var ce ConcurrencyRaceError
	return errors.As(err, &ce)
}

// WrapCall classifies err from an external call. Deadline errors become
// CollaboratorTimeoutError, cancellation passes through untouched and
// everything else becomes CollaboratorError.
func WrapCall(call string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return CollaboratorTimeoutError{Call: call, Err: err}
	case errors.Is(err, context.Canceled):
		return err
	case IsCollaboratorError(err):
		return err
	default:
		return CollaboratorError{Call: call, Err: err}
	}
}
