package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates credential re-entry failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
