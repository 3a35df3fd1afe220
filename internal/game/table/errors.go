package table

import "errors"

// Engine failures fall into three kinds: bad input, an operation that the
// current match state forbids, and lookups that miss. Handlers map kinds to
// HTTP status codes; none of these are retryable against unchanged state.
var (
	// Validation
	ErrInvalidInput         = errors.New("invalid input")
	ErrReachPlayerNotTenpai = errors.New("reach player missing from tenpai seats")

	// State conflicts
	ErrMatchNotPlaying      = errors.New("match is not in playing state")
	ErrMatchAlreadyFinished = errors.New("match already finished")
	ErrAlreadyReach         = errors.New("seat already declared reach")
	ErrInsufficientPoints   = errors.New("not enough points to declare reach")

	// Not found
	ErrMatchNotFound = errors.New("match not found")
	ErrSeatNotFound  = errors.New("seat not found")
)

// IsValidation reports whether err is malformed input (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrReachPlayerNotTenpai)
}

// IsConflict reports whether err is an operation the current state forbids
// (HTTP 409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrMatchNotPlaying) ||
		errors.Is(err, ErrMatchAlreadyFinished) ||
		errors.Is(err, ErrAlreadyReach) ||
		errors.Is(err, ErrInsufficientPoints)
}

// IsNotFound reports whether err is an unknown match or seat (HTTP 404).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrSeatNotFound)
}
