package orchestrator

import (
	"errors"
	"fmt"
)

// NodeFailureError reports the first failing agent of a level. Later levels
// were not started; earlier levels are not rolled back.
type NodeFailureError struct {
	Phase    string
	Level    int
	Node     string
	ExitCode int
	Err      error
}

func (e *NodeFailureError) Error() string {
	msg := fmt.Sprintf("orchestrator: phase %s level %d: agent %s failed", e.Phase, e.Level, e.Node)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NodeFailureError) Unwrap() error {
	return e.Err
}

// ExitCode maps a Run error to a process exit status: 0 on success, the
// failing agent's status for a node failure when it has one, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var nodeErr *NodeFailureError
	if errors.As(err, &nodeErr) && nodeErr.ExitCode > 0 {
		return nodeErr.ExitCode
	}
	return 1
}
