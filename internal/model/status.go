package model

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var AllStatuses = []Status{StatusPending, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// legal next states; completed is terminal and cancelled may only be re-booked
var transitions = map[Status][]Status{
	StatusPending:    {StatusScheduled, StatusCancelled},
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {StatusScheduled},
}

var ErrInvalidTransition = errors.New("invalid status transition")

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move appointment from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NextStatuses lists the states reachable from s in one step.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError for any move not in the table,
// including unknown states and self-transitions.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
