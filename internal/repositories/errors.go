package repositories

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the requested username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned by Create when the username already exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrMissingUsername is returned by Update when the record carries no username.
	ErrMissingUsername = errors.New("username is required")
)
