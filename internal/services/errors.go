package services

import (
	"errors"
	"fmt"

	"github.com/wanderlog/apiserver/internal/store"
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var (
	// ErrCollaboratorNotFound is returned when no account matches the
	// email of an invited or revoked collaborator. It matches store.ErrNotFound.
	ErrCollaboratorNotFound = fmt.Errorf("collaborator %w", store.ErrNotFound)

	// ErrImageNotFound is returned when deleting an image that is not in
	// object storage.
	ErrImageNotFound = errors.New("image not found")
)
