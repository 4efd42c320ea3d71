package model

import "fmt"

// Status is the lifecycle state of a scheduled task within one run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	// StatusSuccessEager means the task's command ran and exited zero.
	StatusSuccessEager Status = "success:eager"
	// StatusSuccessLazy means the task was skipped on a cache hit.
	StatusSuccessLazy Status = "success:lazy"
	StatusFailure     Status = "failure"
	// StatusSkipped means an upstream task failed, so this task never ran.
	StatusSkipped Status = "skipped"
)

var terminalStatuses = map[Status]bool{
	StatusSuccessEager: true,
	StatusSuccessLazy:  true,
	StatusFailure:      true,
	StatusSkipped:      true,
}

// A cache hit jumps pending → success:lazy without ever entering running.
var validStatusTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning:     true,
		StatusSuccessLazy: true,
		StatusSkipped:     true,
	},
	StatusRunning: {
		StatusSuccessEager: true,
		StatusFailure:      true,
	},
}

// IsTerminal reports whether s is a final state.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// IsSuccess reports whether s counts as success for downstream scheduling.
func IsSuccess(s Status) bool {
	return s == StatusSuccessEager || s == StatusSuccessLazy
}

// ValidateStatusTransition rejects transitions outside the lifecycle table.
// A violation indicates a scheduler bug, not a user error.
func ValidateStatusTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validStatusTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid task status transition: %q → %q", from, to)
	}
	return nil
}
