package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingFilename   = errors.New("filename is required")
	ErrInvalidCategory   = errors.New("category is not one of the fixed categories")
	ErrInvalidDifficulty = errors.New("difficulty must be Beginner, Intermediate or Advanced")
	ErrInvalidKeywords   = errors.New("keywords must hold between 1 and 5 entries")
	ErrInvalidSummary    = errors.New("summary length out of bounds")
	ErrInvalidScore      = errors.New("confidence score must be between 0 and 1")
)
