package session

import "fmt"

var (
	ErrNoDevice          = &sessionError{"no device selected"}
	ErrNoIntrinsic       = &sessionError{"no intrinsic calibration selected"}
	ErrUnknownCamera     = &sessionError{"unknown camera"}
	ErrUnknownIntrinsic  = &sessionError{"intrinsic calibration not available for this camera"}
	ErrCaptureInProgress = &sessionError{"capture already in progress"}
	ErrSolveInProgress   = &sessionError{"calibration already in progress"}
	ErrSaveInProgress    = &sessionError{"save already in progress"}
	ErrNotEnoughPoses    = &sessionError{"not enough poses"}
	ErrNoResult          = &sessionError{"no calibration result to save"}
	ErrSessionReset      = &sessionError{"session was reset while the operation was running"}
)

type sessionError struct{ msg string }

func (e *sessionError) Error() string { return e.msg }

// ValidationError is a precondition failure that should be shown to the
// operator as a blocking notice. The session is left untouched.
type ValidationError struct {
	Err error
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

func notEnoughPoses(have int) *ValidationError {
	return &ValidationError{
		Err: ErrNotEnoughPoses,
		Msg: fmt.Sprintf("At least %d poses are required for calibration (have %d).", MinPoses, have),
	}
}
