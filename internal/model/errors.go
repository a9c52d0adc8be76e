package model

import "errors"

// Common errors used across the application
var (
	// Admission errors, reported to the joining connection
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrBadPassword     = errors.New("incorrect session password")
	ErrAlreadyStarted  = errors.New("session game already started")

	// Membership errors
	ErrAlreadyInSession = errors.New("connection is already in a session")
)
