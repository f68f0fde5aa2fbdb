package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/wheee/internal/document"
)

// Journal describes a built-in agent: it appends one phase entry to a shared
// document and exits.
type Journal struct {
	Name     string
	Document document.Document
	Entry    string
}

var builtins = []Journal{
	{Name: "blueprint", Document: document.Constitution, Entry: "Behavioral Rules established."},
	{Name: "link", Document: document.Findings, Entry: "Link: API/credentials verified (or documented as N/A)."},
	{Name: "architect", Document: document.Architecture, Entry: "Layer 1: Technical SOP defined."},
	{Name: "navigator", Document: document.Progress, Entry: "Navigator: Decision tree updated for phase."},
	{Name: "tools", Document: document.Progress, Entry: "Tools (Coder): Layer-3 scripts/tools updated."},
	{Name: "tester", Document: document.Progress, Entry: "Tester: Validation run (unit/integration)."},
	{Name: "stylize", Document: document.Progress, Entry: "Stylize (Designer): Payloads/UI refined."},
	{Name: "frontend", Document: document.Progress, Entry: "Frontend Agent: UI/components updated."},
	{Name: "backend", Document: document.Progress, Entry: "Backend Agent: APIs/services updated."},
	{Name: "test", Document: document.Progress, Entry: "Test Agent: Integration/E2E tests updated."},
	{Name: "docs", Document: document.Progress, Entry: "Docs Agent: Documentation updated."},
}

// Builtins returns the built-in agent table in graph declaration order.
func Builtins() []Journal {
	out := make([]Journal, len(builtins))
	copy(out, builtins)
	return out
}

// RegisterBuiltins installs every built-in agent into reg.
func RegisterBuiltins(reg *Registry) {
	if reg == nil {
		return
	}
	for _, spec := range builtins {
		reg.MustRegister(spec.Name, spec.Factory())
	}
}

// Factory returns a factory building this journal agent.
func (j Journal) Factory() Factory {
	return func(env Env) (Agent, error) {
		if env.Documents == nil {
			return nil, fmt.Errorf("agent: %s needs a document appender", j.Name)
		}
		return &journalAgent{
			spec:   j,
			docs:   env.Documents,
			logger: env.logger().Named(j.Name),
		}, nil
	}
}

type journalAgent struct {
	spec   Journal
	docs   document.Appender
	logger *zap.Logger
}

func (a *journalAgent) Name() string {
	return a.spec.Name
}

func (a *journalAgent) Execute(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.docs.Append(a.spec.Document, document.FormatEntry(phase, a.spec.Entry)); err != nil {
		return fmt.Errorf("agent %s: append %s: %w", a.spec.Name, a.spec.Document.Path, err)
	}
	a.logger.Info("document updated",
		zap.String("phase", phase),
		zap.String("document", a.spec.Document.Path),
	)
	return nil
}
