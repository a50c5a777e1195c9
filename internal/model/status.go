package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a submission as seen by pollers.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusCompiling Status = "COMPILING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QUEUED":
		return StatusQueued, nil
	case "COMPILING":
		return StatusCompiling, nil
	case "RUNNING":
		return StatusRunning, nil
	case "COMPLETED":
		return StatusCompleted, nil
	case "FAILED":
		return StatusFailed, nil
	case "CANCELLED":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid status: %q", s)
	}
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders the forward path QUEUED -> COMPILING -> RUNNING -> terminal.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusCompiling:
		return 1
	case StatusRunning:
		return 2
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next respects the partial
// order QUEUED -> COMPILING -> RUNNING -> {COMPLETED, FAILED}. CANCELLED is
// reachable only from QUEUED.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return s == StatusQueued
	}
	return next.rank() > s.rank()
}

// ExecStatus classifies the outcome of one compile+run pass.
type ExecStatus string

const (
	ExecSuccess          ExecStatus = "SUCCESS"
	ExecCompilationError ExecStatus = "COMPILATION_ERROR"
	ExecTimeout          ExecStatus = "TIMEOUT"
	ExecRuntimeError     ExecStatus = "RUNTIME_ERROR"
	ExecInternalError    ExecStatus = "INTERNAL_ERROR"
	ExecCancelled        ExecStatus = "CANCELLED"
)

// RecordStatus maps an execution outcome onto the submission lifecycle.
// A run that produced a verdict-free result (including compile errors and
// timeouts) is COMPLETED; only infrastructure failures are FAILED.
func (e ExecStatus) RecordStatus() Status {
	switch e {
	case ExecInternalError:
		return StatusFailed
	case ExecCancelled:
		return StatusCancelled
	default:
		return StatusCompleted
	}
}
