package service

import "errors"

var (
	// ErrInvalidInput is returned for payloads the store would reject
	ErrInvalidInput = errors.New("invalid input")
)
