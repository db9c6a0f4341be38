package engine

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrTokenNotFound = errors.New("invalid token, job not found")
	ErrInvalidCode   = errors.New("invalid code")
)

// NotReadyError reports a token scan against a job that exists but has
// not reached Ready. The current status is carried so the scanner UI
// can show it.
type NotReadyError struct {
	Token  string
	Status Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("job %s is not ready, status: %s", e.Token, e.Status)
}

// InvalidTransitionError rejects an operator command that does not move
// the job exactly one step forward from its current state.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move job from %s to %s", e.From, e.To)
}
