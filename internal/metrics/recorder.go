// Package metrics records run and agent outcomes as prometheus collectors on
// a private registry. A one-shot CLI has nothing to scrape, so the registry
// is written to a node-exporter textfile at the end of a run when configured.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const namespace = "wheee"

// Recorder implements the orchestrator's observer hooks.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastRunTimestamp prometheus.Gauge
	lastRunSuccess   prometheus.Gauge

	discoveryBlocks     prometheus.Counter
	discoveryDuplicates prometheus.Gauge

	levelDuration *prometheus.HistogramVec
	activeAgents  prometheus.Gauge

	agentRunsTotal *prometheus.CounterVec
	agentDuration  *prometheus.HistogramVec

	logger *zap.Logger
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	r := &Recorder{registry: reg, logger: logger.With(zap.String("component", "metrics"))}

	r.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestrator runs by phase and final state",
		},
		[]string{"phase", "mode", "state"},
	)
	r.runDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a whole run",
		Buckets:   []float64{0.5, 1, 5, 15, 60, 300, 900, 3600},
	})
	r.lastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
	r.lastRunSuccess = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success",
		Help:      "1 if the last run completed, 0 otherwise",
	})
	r.discoveryBlocks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_blocks_total",
		Help:      "Runs aborted because a proposed component already exists",
	})
	r.discoveryDuplicates = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "discovery_duplicate_names",
		Help:      "Proposed names with at least one match in the last discovery",
	})
	r.levelDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "level_duration_seconds",
			Help:      "Time from launching a level to its join",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"level"},
	)
	r.activeAgents = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_agents",
		Help:      "Agents launched by the level currently running",
	})
	r.agentRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent executions by outcome (success, failure, skipped)",
		},
		[]string{"agent", "outcome"},
	)
	r.agentDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_duration_seconds",
			Help:      "Agent execution time",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"agent"},
	)
	return r
}

// Registry exposes the private registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// DiscoveryFinished records the outcome of the duplicate gate.
func (r *Recorder) DiscoveryFinished(phase string, duplicates int) {
	r.discoveryDuplicates.Set(float64(duplicates))
	if duplicates > 0 {
		r.discoveryBlocks.Inc()
	}
}

// LevelStarted records the width of the level being launched.
func (r *Recorder) LevelStarted(level int, agents []string) {
	r.activeAgents.Set(float64(len(agents)))
}

// LevelFinished records how long a level took to join.
func (r *Recorder) LevelFinished(level int, elapsed time.Duration) {
	r.activeAgents.Set(0)
	r.levelDuration.WithLabelValues(fmt.Sprint(level)).Observe(elapsed.Seconds())
}

// AgentFinished records one agent result.
func (r *Recorder) AgentFinished(agent, outcome string, elapsed time.Duration) {
	r.agentRunsTotal.WithLabelValues(agent, outcome).Inc()
	r.agentDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// RunFinished records the final state of a run.
func (r *Recorder) RunFinished(phase, mode, state string, elapsed time.Duration) {
	r.runsTotal.WithLabelValues(phase, mode, state).Inc()
	r.runDuration.Observe(elapsed.Seconds())
	r.lastRunTimestamp.SetToCurrentTime()
	if state == "completed" {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in the text exposition format for the
// node-exporter textfile collector. The write is atomic.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: ensure textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	r.logger.Debug("metrics textfile written", zap.String("path", path))
	return nil
}
