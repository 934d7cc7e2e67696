package model

import "errors"

// Sentinel errors shared by the repositories and services, check them with errors.Is.
var (
	// ErrNotFound is returned for missing tasks, cache entries, commits...
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a task ID is already in the queue.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned by validations and forbidden state transitions.
	ErrNotValid = errors.New("not valid")
)
