package lifecycle

import (
	"errors"
	"fmt"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/match"
)

// State is the controller state for one test case.
type State int

const (
	Idle State = iota
	Recording
	Replaying
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Replaying:
		return "replaying"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Mode is the way a case runs: against the live API or from fixtures.
type Mode string

const (
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

// ErrorCode categorizes lifecycle errors.
type ErrorCode string

const (
	ErrCodeInvalidState        ErrorCode = "INVALID_STATE"
	ErrCodeBaseURLMissing      ErrorCode = "BASE_URL_MISSING"
	ErrCodeInconsistentTraffic ErrorCode = "INCONSISTENT_TRAFFIC"
)

// ErrBaseURLMissing is returned by Start when the case has no base URL to
// scope its recording.
var ErrBaseURLMissing = errors.New(string(ErrCodeBaseURLMissing) + ": case has no base URL")

// StateError reports an operation that is not valid in the current state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", ErrCodeInvalidState, e.Op, e.State)
}

// InconsistentTrafficError reports new traffic that differs from a
// candidate recorded earlier for the same case.
type InconsistentTrafficError struct {
	Key    string
	Hash   string
	Impact impact.Level
	Errors match.ErrorBucket
}

func (e *InconsistentTrafficError) Error() string {
	return fmt.Sprintf("%s: %s (%s): traffic differs from the pending candidate (%s impact, %d findings)",
		ErrCodeInconsistentTraffic, e.Key, e.Hash, e.Impact, e.Errors.Count())
}

// IsStateError reports whether err is or wraps a *StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsInconsistentTraffic reports whether err is or wraps an
// *InconsistentTrafficError.
func IsInconsistentTraffic(err error) bool {
	var ie *InconsistentTrafficError
	return errors.As(err, &ie)
}
