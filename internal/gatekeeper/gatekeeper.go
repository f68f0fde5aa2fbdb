// Package gatekeeper runs the discovery pass that precedes every orchestrated
// run. It reads the phase plan, extracts the component files the plan proposes
// to create, and checks each proposed name against the existing component
// tree. One overlapping name blocks the whole run; there is no partial
// admission.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/wheee/internal/similarity"
)

// DefaultPlanMarker is the substring that identifies a plan file inside a
// phase directory.
const DefaultPlanMarker = "PLAN.md"

// DefaultComponentRoot is the slash-separated component tree prefix that
// proposed paths must carry.
const DefaultComponentRoot = "src/components"

// Matcher answers similarity queries against the existing component tree.
type Matcher interface {
	Query(name string) ([]similarity.Match, error)
}

// Options configures a Gatekeeper.
type Options struct {
	// PlanningDir holds one directory per phase (e.g. .planning/phases).
	PlanningDir string
	// ComponentRoot is the slash-separated prefix proposed paths must contain.
	ComponentRoot string
	// PlanMarker identifies the plan file inside a phase directory.
	PlanMarker string
	// Extensions recognised for back-quoted paths.
	Extensions []string
	Index      Matcher
	Logger     *zap.Logger
}

// Gatekeeper performs discovery for a phase.
type Gatekeeper struct {
	planningDir   string
	componentRoot string
	planMarker    string
	index         Matcher
	logger        *zap.Logger
	pattern       *regexp.Regexp
}

// New builds a Gatekeeper, compiling the proposed-file pattern from the
// configured component root and extensions.
func New(opts Options) (*Gatekeeper, error) {
	if opts.Index == nil {
		return nil, fmt.Errorf("gatekeeper: similarity index is required")
	}
	root := strings.Trim(filepath.ToSlash(strings.TrimSpace(opts.ComponentRoot)), "/")
	if root == "" {
		root = DefaultComponentRoot
	}
	marker := opts.PlanMarker
	if marker == "" {
		marker = DefaultPlanMarker
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = similarity.DefaultExtensions
	}
	pattern, err := compilePattern(root, exts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatekeeper{
		planningDir:   opts.PlanningDir,
		componentRoot: root,
		planMarker:    marker,
		index:         opts.Index,
		logger:        logger.Named("gatekeeper"),
		pattern:       pattern,
	}, nil
}

// compilePattern matches two classes of path: back-quoted paths ending in a
// recognised extension, and bare occurrences of <root>/... running up to
// whitespace or a closing parenthesis.
func compilePattern(root string, exts []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(ext))
	}
	if len(quoted) == 0 {
		return nil, fmt.Errorf("gatekeeper: at least one extension is required")
	}
	expr := fmt.Sprintf("`([^`]+\\.(?:%s))`|%s/[^\\s)]+", strings.Join(quoted, "|"), regexp.QuoteMeta(root))
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: compile pattern: %w", err)
	}
	return pattern, nil
}

// FindPlan returns the plan file for phase: the first file whose name contains
// the plan marker, inside the first phase directory (lexical order) whose name
// contains phase. ok is false when no plan exists.
func (g *Gatekeeper) FindPlan(phase string) (planPath string, ok bool, err error) {
	if g.planningDir == "" {
		return "", false, nil
	}
	entries, err := os.ReadDir(g.planningDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("gatekeeper: read %s: %w", g.planningDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), phase) {
			continue
		}
		dir := filepath.Join(g.planningDir, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return "", false, fmt.Errorf("gatekeeper: read %s: %w", dir, err)
		}
		for _, file := range files {
			if !file.IsDir() && strings.Contains(file.Name(), g.planMarker) {
				return filepath.Join(dir, file.Name()), true, nil
			}
		}
	}
	return "", false, nil
}

// ExtractProposedFiles pulls candidate component paths out of plan text,
// deduplicated by exact string in first-seen order, keeping only paths under
// the component root.
func (g *Gatekeeper) ExtractProposedFiles(content string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range g.pattern.FindAllStringSubmatch(content, -1) {
		candidate := m[0]
		if m[1] != "" {
			candidate = m[1]
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		if strings.Contains(candidate, g.componentRoot) {
			out = append(out, candidate)
		}
	}
	return out
}

// Discover runs the discovery pass for phase. A missing plan or a plan that
// proposes nothing passes. The returned report is blocked when any proposed
// name overlaps an existing component; Report.Err converts that into a
// *BlockError.
func (g *Gatekeeper) Discover(ctx context.Context, phase string) (Report, error) {
	report := Report{Phase: phase}
	planPath, ok, err := g.FindPlan(phase)
	if err != nil {
		return report, err
	}
	if !ok {
		g.logger.Warn("no plan found for phase, skipping discovery", zap.String("phase", phase))
		return report, nil
	}
	report.PlanPath = planPath
	content, err := os.ReadFile(planPath)
	if err != nil {
		return report, fmt.Errorf("gatekeeper: read plan %s: %w", planPath, err)
	}
	report.Proposed = g.ExtractProposedFiles(string(content))
	if len(report.Proposed) == 0 {
		g.logger.Info("plan proposes no new components", zap.String("plan", planPath))
		return report, nil
	}
	for _, proposed := range report.Proposed {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := baseName(proposed)
		if similarity.Normalize(name) == "" {
			report.Skipped = append(report.Skipped, proposed)
			g.logger.Debug("skipping proposal with empty normalized name", zap.String("proposed", proposed))
			continue
		}
		g.logger.Debug("analyzing proposed component", zap.String("name", name))
		matches, err := g.index.Query(name)
		if err != nil {
			return report, fmt.Errorf("gatekeeper: similarity for %s: %w", name, err)
		}
		if len(matches) == 0 {
			continue
		}
		report.Findings = append(report.Findings, Finding{Proposed: proposed, Name: name, Matches: matches})
		for _, m := range matches {
			g.logger.Error("proposed component already exists",
				zap.String("proposed", name),
				zap.String("existing", m.Name),
				zap.String("path", m.Path),
			)
		}
	}
	if !report.Blocked() {
		g.logger.Info("discovery complete, no duplicates found", zap.Int("proposed", len(report.Proposed)))
	}
	return report, nil
}

// baseName strips directories and the final extension from a slash path.
func baseName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}
