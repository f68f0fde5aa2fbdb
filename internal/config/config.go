// internal/config/config.go
//
// This package handles configuration and the .wheee directory structure.
// Every project orchestrated by wheee gets a .wheee/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/kingrea/wheee/internal/document"
	"github.com/kingrea/wheee/internal/workflow/scheduler"
)

const (
	// WheeeDir is the name of the directory we create in each project
	WheeeDir = ".wheee"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "WHEEE_"

	maxConfigFileSize = 1024 * 1024
)

// Isolation values for execution.isolation.
const (
	IsolationProcess   = "process"
	IsolationInProcess = "inprocess"
)

const defaultProjectConfigYAML = `# wheee project configuration
# Every key can be overridden with WHEEE_<SECTION>_<FIELD>, e.g. WHEEE_EXECUTION_MODE=sequential.

paths:
  planning: .planning/phases
  components: src/components
  agents: .wheee/agents
  # Optional YAML graph replacing the built-in agent graph.
  # graph: .wheee/graph.yaml

discovery:
  plan_marker: PLAN.md
  extensions: [tsx, jsx, ts, js]
  exclude: [node_modules, .git, dist, build]

execution:
  mode: parallel          # parallel | sequential
  isolation: process      # process | inprocess
  max_parallel: 0         # 0 = whole level at once
  missing_agent_delay: 500ms

documents:
  policy: race            # race | mutex (inprocess only) | merge

logging:
  level: info
  format: console         # console | json
  file: .wheee/logs/wheee.log

metrics:
  # textfile: .wheee/metrics.prom
`

// Paths locates the collaborators a run reads from.
type Paths struct {
	Planning   string `koanf:"planning"`
	Components string `koanf:"components"`
	Agents     string `koanf:"agents"`
	Graph      string `koanf:"graph"`
}

// Discovery tunes the duplicate-component gate.
type Discovery struct {
	PlanMarker string   `koanf:"plan_marker"`
	Extensions []string `koanf:"extensions"`
	Exclude    []string `koanf:"exclude"`
}

// Execution controls how levels run.
type Execution struct {
	Mode              string        `koanf:"mode"`
	Isolation         string        `koanf:"isolation"`
	MaxParallel       int           `koanf:"max_parallel"`
	MissingAgentDelay time.Duration `koanf:"missing_agent_delay"`
}

// Documents selects the shared document write policy.
type Documents struct {
	Policy string `koanf:"policy"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Metrics configures the optional node-exporter textfile.
type Metrics struct {
	Textfile string `koanf:"textfile"`
}

// Config holds the runtime configuration for one project.
type Config struct {
	// ProjectDir is the directory the orchestrator runs against. Relative
	// paths below are resolved against it.
	ProjectDir string `koanf:"-"`

	Paths     Paths     `koanf:"paths"`
	Discovery Discovery `koanf:"discovery"`
	Execution Execution `koanf:"execution"`
	Documents Documents `koanf:"documents"`
	Logging   Logging   `koanf:"logging"`
	Metrics   Metrics   `koanf:"metrics"`
}

// Default returns the built-in configuration for projectDir. It matches the
// commented config.yaml InitProjectDir writes.
func Default(projectDir string) *Config {
	return &Config{
		ProjectDir: projectDir,
		Paths: Paths{
			Planning:   filepath.Join(".planning", "phases"),
			Components: "src/components",
			Agents:     filepath.Join(WheeeDir, "agents"),
		},
		Discovery: Discovery{
			PlanMarker: "PLAN.md",
			Extensions: []string{"tsx", "jsx", "ts", "js"},
			Exclude:    []string{"node_modules", ".git", "dist", "build"},
		},
		Execution: Execution{
			Mode:              string(scheduler.ModeParallel),
			Isolation:         IsolationProcess,
			MissingAgentDelay: 500 * time.Millisecond,
		},
		Documents: Documents{Policy: string(document.PolicyRace)},
		Logging: Logging{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(WheeeDir, "logs", "wheee.log"),
		},
	}
}

// InitProjectDir creates the .wheee directory structure in the given project directory.
//
// Structure created:
// .wheee/
// ├── config.yaml   <- commented defaults, only written when missing
// ├── agents/       <- <name>-agent executables
// ├── logs/         <- wheee.log and the runs logbook
// └── spool/        <- per-run document entries under the merge policy
func InitProjectDir(projectDir string) error {
	wheeeDir := filepath.Join(projectDir, WheeeDir)
	dirs := []string{
		filepath.Join(wheeeDir, "agents"),
		filepath.Join(wheeeDir, "logs"),
		filepath.Join(wheeeDir, "spool"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(wheeeDir, "config.yaml"))
}

// Load reads configuration for projectDir.
//
// Precedence (highest to lowest):
//  1. Environment variables (WHEEE_EXECUTION_MODE, WHEEE_DOCUMENTS_POLICY, ...)
//  2. The YAML file at configPath (default .wheee/config.yaml)
//  3. Built-in defaults
//
// A missing config file is not an error.
func Load(projectDir, configPath string) (*Config, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = filepath.Join(projectDir, WheeeDir, "config.yaml")
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaultProjectConfigYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: parse defaults: %w", err)
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	// WHEEE_EXECUTION_MAX_PARALLEL -> execution.max_parallel: the first
	// underscore after the prefix separates section from field.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{ProjectDir: projectDir}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: %s is larger than %d bytes", path, maxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return data, nil
}

func (c *Config) normalize() {
	c.Execution.Mode = normalizeValue(c.Execution.Mode)
	c.Execution.Isolation = normalizeValue(c.Execution.Isolation)
	c.Documents.Policy = normalizeValue(c.Documents.Policy)
	c.Logging.Level = normalizeValue(c.Logging.Level)
	c.Logging.Format = normalizeValue(c.Logging.Format)
	c.Discovery.Extensions = trimAll(c.Discovery.Extensions, ".")
	c.Discovery.Exclude = trimAll(c.Discovery.Exclude, "")
	c.Paths.Components = filepath.ToSlash(strings.TrimSpace(c.Paths.Components))
}

// Validate rejects values the orchestrator cannot run with.
func (c *Config) Validate() error {
	if _, err := scheduler.ParseMode(c.Execution.Mode); err != nil {
		return fmt.Errorf("execution.mode: %w", err)
	}
	switch c.Execution.Isolation {
	case IsolationProcess, IsolationInProcess:
	default:
		return fmt.Errorf("execution.isolation must be %q or %q, got %q", IsolationProcess, IsolationInProcess, c.Execution.Isolation)
	}
	if c.Execution.MaxParallel < 0 {
		return fmt.Errorf("execution.max_parallel must be >= 0")
	}
	if c.Execution.MissingAgentDelay < 0 {
		return fmt.Errorf("execution.missing_agent_delay must be >= 0")
	}
	policy, err := document.ParsePolicy(c.Documents.Policy)
	if err != nil {
		return fmt.Errorf("documents.policy: %w", err)
	}
	if policy == document.PolicyMutex && c.Execution.Isolation == IsolationProcess {
		return fmt.Errorf("documents.policy mutex only serializes in-process agents; use merge with process isolation")
	}
	if c.Paths.Components == "" {
		return fmt.Errorf("paths.components is required")
	}
	if len(c.Discovery.Extensions) == 0 {
		return fmt.Errorf("discovery.extensions must not be empty")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// Mode returns the configured default execution mode.
func (c *Config) Mode() scheduler.Mode {
	mode, _ := scheduler.ParseMode(c.Execution.Mode)
	return mode
}

// Policy returns the configured document policy.
func (c *Config) Policy() document.Policy {
	policy, _ := document.ParsePolicy(c.Documents.Policy)
	return policy
}

// WheeeProjectDir returns ProjectDir/.wheee
func (c *Config) WheeeProjectDir() string {
	return filepath.Join(c.ProjectDir, WheeeDir)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.WheeeProjectDir(), "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.WheeeProjectDir(), "logs")
}

// LogbookPath returns the run logbook location.
func (c *Config) LogbookPath() string {
	return filepath.Join(c.LogsDir(), "runs.log")
}

// SpoolDir returns the document spool directory for one run.
func (c *Config) SpoolDir(runID string) string {
	return filepath.Join(c.WheeeProjectDir(), "spool", runID)
}

// PlanningDir returns the root holding one directory per phase.
func (c *Config) PlanningDir() string {
	return resolvePath(c.ProjectDir, c.Paths.Planning)
}

// ComponentsDir returns the absolute component root.
func (c *Config) ComponentsDir() string {
	return resolvePath(c.ProjectDir, c.Paths.Components)
}

// AgentsDir returns the directory holding <name>-agent executables.
func (c *Config) AgentsDir() string {
	return resolvePath(c.ProjectDir, c.Paths.Agents)
}

// GraphPath returns the custom graph file, or "" for the built-in graph.
func (c *Config) GraphPath() string {
	return resolvePath(c.ProjectDir, c.Paths.Graph)
}

// LogFile returns the JSON log file, or "" when file logging is off.
func (c *Config) LogFile() string {
	return resolvePath(c.ProjectDir, c.Logging.File)
}

// MetricsTextfile returns the textfile export path, or "" when disabled.
func (c *Config) MetricsTextfile() string {
	return resolvePath(c.ProjectDir, c.Metrics.Textfile)
}

func normalizeValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func trimAll(values []string, cutset string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if cutset != "" {
			v = strings.TrimLeft(v, cutset)
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
