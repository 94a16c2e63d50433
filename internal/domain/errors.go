package domain

import "errors"

var (
	// ErrSeasonNotFound is returned when a season slug (or "current") cannot be resolved.
	ErrSeasonNotFound = errors.New("season not found")
	// ErrAwardNotFound is returned when a superlative question references an unknown award.
	ErrAwardNotFound = errors.New("award not found")
	// ErrQuestionNotFound indicates a question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound is returned when a user has no entry in a season.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotSuperlative is returned when an awards-only operation targets another variant.
	ErrNotSuperlative = errors.New("question is not a superlative question")
	// ErrInvalidGrader is returned for an unknown grader name.
	ErrInvalidGrader = errors.New("invalid grader")
	// ErrRunFailed wraps any unexpected failure inside a grading run.
	ErrRunFailed = errors.New("grading run failed")
	// ErrMalformedQuestion is returned when a question's variant payload does not match its kind.
	ErrMalformedQuestion = errors.New("malformed question")
)

// IsMissingEntity reports whether err should abort an operation before any work starts.
func IsMissingEntity(err error) bool {
	return errors.Is(err, ErrSeasonNotFound) ||
		errors.Is(err, ErrAwardNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
