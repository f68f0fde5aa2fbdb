package document

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy selects how concurrent appends to the same document are handled.
type Policy string

const (
	// PolicyRace performs unsynchronized read-modify-write cycles. Two agents
	// appending to one document in the same level lose one of the entries.
	PolicyRace Policy = "race"
	// PolicyMutex serializes read-modify-write per document. It only protects
	// appenders sharing one Journal, i.e. agents running in-process.
	PolicyMutex Policy = "mutex"
	// PolicyMerge spools entries to files and applies them serially when the
	// orchestrator calls Merge after each level.
	PolicyMerge Policy = "merge"
)

// ParsePolicy maps user input onto a Policy. Empty input selects race.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyRace:
		return PolicyRace, nil
	case PolicyMutex:
		return PolicyMutex, nil
	case PolicyMerge:
		return PolicyMerge, nil
	default:
		return "", fmt.Errorf("document: unknown policy %q (want race, mutex or merge)", value)
	}
}

// Environment variables that carry the journal policy into agent processes.
const (
	EnvPolicy   = "WHEEE_DOCUMENT_POLICY"
	EnvSpoolDir = "WHEEE_SPOOL_DIR"
)

// Appender adds one entry to a shared document.
type Appender interface {
	Append(doc Document, entry string) error
}

// Journal hands out per-agent appenders that share one write policy.
type Journal struct {
	store    Store
	policy   Policy
	spoolDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	seq   atomic.Uint64
}

// NewJournal builds a journal over store. spoolDir is required for
// PolicyMerge and ignored otherwise.
func NewJournal(store Store, policy Policy, spoolDir string) (*Journal, error) {
	if store == nil {
		return nil, fmt.Errorf("document: store is required")
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = PolicyRace
	}
	if policy == PolicyMerge && strings.TrimSpace(spoolDir) == "" {
		return nil, fmt.Errorf("document: merge policy requires a spool directory")
	}
	return &Journal{
		store:    store,
		policy:   policy,
		spoolDir: spoolDir,
		locks:    map[string]*sync.Mutex{},
	}, nil
}

// Policy returns the journal's write policy.
func (j *Journal) Policy() Policy {
	return j.policy
}

// SpoolDir returns the spool directory used by PolicyMerge.
func (j *Journal) SpoolDir() string {
	return j.spoolDir
}

// Environ returns the variables a child process needs to rebuild this
// journal with JournalFromEnv.
func (j *Journal) Environ() []string {
	env := []string{EnvPolicy + "=" + string(j.policy)}
	if j.spoolDir != "" {
		env = append(env, EnvSpoolDir+"="+j.spoolDir)
	}
	return env
}

// JournalFromEnv rebuilds the journal an orchestrator described through
// Environ. Missing variables select the race policy.
func JournalFromEnv(store Store, getenv func(string) string) (*Journal, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	policy, err := ParsePolicy(getenv(EnvPolicy))
	if err != nil {
		return nil, err
	}
	return NewJournal(store, policy, getenv(EnvSpoolDir))
}

// For returns the appender an agent uses.
func (j *Journal) For(agent string) Appender {
	return &agentAppender{journal: j, agent: agent}
}

type agentAppender struct {
	journal *Journal
	agent   string
}

func (a *agentAppender) Append(doc Document, entry string) error {
	j := a.journal
	switch j.policy {
	case PolicyMutex:
		lock := j.lockFor(doc.Path)
		lock.Lock()
		defer lock.Unlock()
		return appendTo(j.store, doc, entry)
	case PolicyMerge:
		return j.spool(a.agent, doc, entry)
	default:
		return appendTo(j.store, doc, entry)
	}
}

func (j *Journal) lockFor(path string) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()
	lock, ok := j.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		j.locks[path] = lock
	}
	return lock
}

type spoolEntry struct {
	Agent    string   `yaml:"agent"`
	Document Document `yaml:"document"`
	Entry    string   `yaml:"entry"`
}

// spool writes the entry to its own file; the rename keeps Merge from seeing
// half-written entries.
func (j *Journal) spool(agent string, doc Document, entry string) error {
	if err := os.MkdirAll(j.spoolDir, 0o755); err != nil {
		return fmt.Errorf("document: ensure spool dir: %w", err)
	}
	data, err := yaml.Marshal(spoolEntry{Agent: agent, Document: doc, Entry: entry})
	if err != nil {
		return fmt.Errorf("document: encode spool entry: %w", err)
	}
	tmp, err := os.CreateTemp(j.spoolDir, agent+"-*.tmp")
	if err != nil {
		return fmt.Errorf("document: create spool entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("document: write spool entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("document: close spool entry: %w", err)
	}
	name := fmt.Sprintf("%s-%020d-%06d.yaml", agent, time.Now().UnixNano(), j.seq.Add(1))
	if err := os.Rename(tmp.Name(), filepath.Join(j.spoolDir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("document: publish spool entry: %w", err)
	}
	return nil
}

// Merge applies spooled entries to their documents one at a time, ordered by
// agent name then write order, and removes them. It returns the number of
// entries applied and is a no-op for other policies.
func (j *Journal) Merge() (int, error) {
	if j.policy != PolicyMerge {
		return 0, nil
	}
	entries, err := os.ReadDir(j.spoolDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("document: read spool: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	applied := 0
	for _, name := range names {
		path := filepath.Join(j.spoolDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("document: read spool entry %s: %w", name, err)
		}
		var entry spoolEntry
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
			return applied, fmt.Errorf("document: decode spool entry %s: %w", name, err)
		}
		if err := appendTo(j.store, entry.Document, entry.Entry); err != nil {
			return applied, err
		}
		if err := os.Remove(path); err != nil {
			return applied, fmt.Errorf("document: remove spool entry %s: %w", name, err)
		}
		applied++
	}
	return applied, nil
}

// Close removes the spool directory once it is empty. Leftover entries are
// kept so a failed merge can be inspected.
func (j *Journal) Close() error {
	if j.policy != PolicyMerge {
		return nil
	}
	if err := os.Remove(j.spoolDir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		entries, readErr := os.ReadDir(j.spoolDir)
		if readErr == nil && len(entries) > 0 {
			return nil
		}
		return fmt.Errorf("document: remove spool: %w", err)
	}
	return nil
}
