package player

import (
	"errors"
	"fmt"
)

var (
	ErrNotPlaying   = errors.New("session is not playing")
	ErrNotFinished  = errors.New("session is not finished")
	ErrBusy         = errors.New("feedback is still showing")
	ErrWrongInput   = errors.New("input does not apply to this game type")
	ErrInvalidInput = errors.New("invalid input")
	ErrClosed       = errors.New("session closed")
)

// LoadError means the game definition could not be fetched or decoded. The
// session never starts.
type LoadError struct {
	GameID string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading game %s: %v", e.GameID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmitError means a finished session's result was not acknowledged by the
// backend. No points were credited.
type SubmitError struct {
	GameID string
	Err    error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submitting result for game %s: %v", e.GameID, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
