// Package agent defines the contract a named work unit fulfils and the
// registry the orchestrator and the wheee-agent executable resolve agents
// from.
package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/kingrea/wheee/internal/document"
)

// Agent is one node of the run graph. Execute must be safe to run alongside
// other agents of the same level; agents never talk to each other.
type Agent interface {
	Name() string
	Execute(ctx context.Context, phase string) error
}

// Env carries the collaborators an agent is built with.
type Env struct {
	Documents document.Appender
	Logger    *zap.Logger
}

func (e Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
