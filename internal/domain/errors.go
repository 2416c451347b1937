package domain

import "errors"

var (
	// ErrTestNotFound indicates the test definition could not be loaded.
	ErrTestNotFound = errors.New("test not found")
	// ErrInvalidTest is returned for definitions that fail validation.
	ErrInvalidTest = errors.New("invalid test definition")
	// ErrSessionNotFound is returned when no active attempt has the given ID.
	ErrSessionNotFound = errors.New("test session not found")
	// ErrNilQuestions is a caller contract violation: a session needs a question list, even an empty one.
	ErrNilQuestions = errors.New("test session requires a question list")
	// ErrDeclarationRequired is returned when a learner starts a test without accepting the instructions.
	ErrDeclarationRequired = errors.New("instructions declaration must be accepted before starting")
	// ErrTestNotCompleted is returned when a report is requested for a test without a result.
	ErrTestNotCompleted = errors.New("test has not been completed")
)
