package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph       = errors.New("invalid task graph")
	ErrDanglingDependency = errors.New("dangling dependency")
	ErrCycle              = errors.New("dependency cycle")
)

// GraphError reports a task graph that cannot be scheduled. It is fatal at
// startup and never leaves partial effects behind.
type GraphError struct {
	Kind error
	Msg  string
	// Nodes lists the node names involved (unplaced nodes for a cycle, the
	// offending node for dangling or invalid entries).
	Nodes []string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return "workflow: " + e.Kind.Error()
	}
	return fmt.Sprintf("workflow: %s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(node string, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...), Nodes: []string{node}}
}

func danglingError(node, dep string) error {
	return &GraphError{
		Kind:  ErrDanglingDependency,
		Msg:   fmt.Sprintf("%s depends on undeclared node %s", node, dep),
		Nodes: []string{node},
	}
}

// CycleError builds the error returned when layering stalls with unplaced
// nodes left over.
func CycleError(unplaced []string) error {
	return &GraphError{
		Kind:  ErrCycle,
		Msg:   "no schedulable node among " + strings.Join(unplaced, ", "),
		Nodes: append([]string(nil), unplaced...),
	}
}
