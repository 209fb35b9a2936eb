package users

import "errors"

var (
	// ErrNotFound indicates no account exists for the given email.
	ErrNotFound = errors.New("users: not found")
	// ErrAlreadyExists indicates a duplicate registration attempt.
	ErrAlreadyExists = errors.New("users: already exists")
	// ErrInvalidInput indicates a malformed or incomplete request.
	ErrInvalidInput = errors.New("users: invalid input")
	// ErrUnauthorized indicates bad credentials or a missing identity claim.
	ErrUnauthorized = errors.New("users: unauthorized")
)
