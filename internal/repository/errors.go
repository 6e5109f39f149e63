package repository

import "errors"

var (
	// ErrInvalidImageURL indicates an invalid image URL
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrSessionNotFound indicates no live session exists for the id
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a session with the id is already stored
	ErrSessionExists = errors.New("session already exists")
)
