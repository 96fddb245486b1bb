package repository

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCreationFailed is returned when bounded identifier-regeneration
	// retries are exhausted. It wraps a uniqueness conflict that could not be
	// recovered locally.
	ErrCreationFailed = errors.New("creation failed")

	// ErrDuplicateEmail is returned when a user registration collides on the
	// institutional email. Unlike access-code collisions this is not
	// retryable, so it surfaces directly.
	ErrDuplicateEmail = errors.New("email already registered")
)
