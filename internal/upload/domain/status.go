package domain

import "fmt"

// Status is the upload lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Decision codes returned by Evaluate.
const (
	CodeOK                = "ok"
	CodeIdempotent        = "idempotent"
	CodeSkippedProcessing = "must_pass_processing"
	CodeRegression        = "no_regression"
	CodeTerminal          = "terminal_state"
	CodeUnknownTransition = "unknown_transition"
)

// Decision is the outcome of evaluating a status transition.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true, Code: CodeOK}
}

// Idempotent self-transitions are distinguishable from genuine forward
// progress so duplicate worker ticks stay observable as no-ops.
func idempotent(s Status) Decision {
	return Decision{Allowed: true, Code: CodeIdempotent, Reason: fmt.Sprintf("upload already %s", s)}
}

func reject(code, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason}
}

// Evaluate applies the upload lifecycle transition table. Every combination
// outside the table is rejected as an unknown transition, with the original
// from/to text preserved in the reason.
func Evaluate(from, to Status) Decision {
	if !from.valid() || !to.valid() {
		return reject(CodeUnknownTransition, fmt.Sprintf("unknown transition %q -> %q", string(from), string(to)))
	}
	if from == to {
		return idempotent(from)
	}

	switch from {
	case StatusPending:
		switch to {
		case StatusProcessing, StatusFailed:
			return allow()
		case StatusCompleted:
			return reject(CodeSkippedProcessing, "PENDING upload must pass through PROCESSING before COMPLETED")
		}
	case StatusProcessing:
		switch to {
		case StatusCompleted, StatusFailed:
			return allow()
		case StatusPending:
			return reject(CodeRegression, "PROCESSING upload cannot regress to PENDING")
		}
	case StatusCompleted:
		return reject(CodeTerminal, fmt.Sprintf("COMPLETED upload cannot move to %s", to))
	case StatusFailed:
		// A retry must create a new upload row, not resurrect a failed one.
		return reject(CodeTerminal, fmt.Sprintf("FAILED upload cannot move to %s", to))
	}

	return reject(CodeUnknownTransition, fmt.Sprintf("unknown transition %q -> %q", string(from), string(to)))
}

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no forward progress is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
