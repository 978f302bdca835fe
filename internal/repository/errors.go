package repository

import "errors"

// Common repository errors
var (
	// ErrBoardNotFound is returned when the user has no board yet
	ErrBoardNotFound = errors.New("board not found")

	// ErrColumnNotFound is returned when a column is not found
	ErrColumnNotFound = errors.New("column not found")

	// ErrTaskNotFound is returned when a task is not found or not owned by the caller
	ErrTaskNotFound = errors.New("task not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")
)
