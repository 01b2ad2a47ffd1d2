package project

import "errors"

// Lookup and authorization errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("caller is not the project owner")
	ErrForbidden    = errors.New("user is banned")
)

// Input errors.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyProjectID = errors.New("projectId is required")
	ErrEmptyFileRef   = errors.New("fileRef is required")
	ErrEmptyName      = errors.New("displayName is required")
	ErrEmptyNewName   = errors.New("newName is required")
	ErrEmptyOwnerName = errors.New("ownerName is required")
	ErrEmptyOwnerID   = errors.New("ownerId is required")
	ErrEmptyUserID    = errors.New("userId is required")
	ErrEmptyQuery     = errors.New("query is required")
	ErrNegativeOffset = errors.New("offset cannot be negative")
)

// Storage errors.
var (
	ErrStorage    = errors.New("storage failure")
	ErrContention = errors.New("too many concurrent updates")
	ErrExists     = errors.New("project already exists")
)

// invalid tags a validation error so it matches both ErrInvalidInput and
// the specific cause.
func invalid(cause error) error {
	return &inputError{cause: cause}
}

type inputError struct {
	cause error
}

func (e *inputError) Error() string {
	return e.cause.Error()
}

func (e *inputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *inputError) Unwrap() error {
	return e.cause
}
