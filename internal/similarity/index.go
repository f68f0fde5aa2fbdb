// Package similarity finds existing components whose names overlap a proposed
// name. Matching is deliberately coarse: names are normalized and compared by
// substring containment in either direction, so short names over-match. A
// match is a yes/no signal, not a ranked score.
package similarity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SentinelConfidence is attached to every Match. It is a fixed marker kept for
// report compatibility; callers must not rank or threshold on it.
const SentinelConfidence = 0.8

// DefaultExtensions lists the source extensions treated as components.
var DefaultExtensions = []string{"tsx", "jsx", "ts", "js"}

// DefaultExclude lists directory names skipped while walking the tree.
var DefaultExclude = []string{"node_modules", ".git", "dist", "build"}

// Match is one existing component whose name overlaps the query.
type Match struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

// Normalize lowercases s and drops every rune outside [a-z0-9].
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r > unicode.MaxASCII {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Overlaps reports whether two normalized names contain one another. Empty
// names never overlap: the empty string is a substring of everything.
func Overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Index queries a component directory tree. The tree is walked fresh on every
// query; nothing is cached between calls.
type Index struct {
	// Root is the component directory to walk.
	Root string
	// Base, when set, makes reported paths relative to it (usually the project
	// directory). Otherwise paths are relative to Root.
	Base       string
	Extensions []string
	Exclude    []string
}

// New returns an Index over root with the default extension and exclude sets.
func New(root string) *Index {
	return &Index{
		Root:       root,
		Extensions: append([]string(nil), DefaultExtensions...),
		Exclude:    append([]string(nil), DefaultExclude...),
	}
}

// Candidate is one component file found under the root.
type Candidate struct {
	Name string
	Path string
}

// Candidates walks the root and returns every component file in lexical walk
// order. A missing root yields no candidates.
func (idx *Index) Candidates() ([]Candidate, error) {
	if idx == nil || idx.Root == "" {
		return nil, nil
	}
	info, err := os.Stat(idx.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("similarity: stat %s: %w", idx.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("similarity: %s is not a directory", idx.Root)
	}
	exts := extensionSet(idx.Extensions)
	excluded := make(map[string]struct{}, len(idx.Exclude))
	for _, name := range idx.Exclude {
		excluded[name] = struct{}{}
	}
	var out []Candidate
	err = filepath.WalkDir(idx.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if _, skip := excluded[d.Name()]; skip && path != idx.Root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if _, ok := exts[strings.TrimPrefix(ext, ".")]; !ok {
			return nil
		}
		out = append(out, Candidate{
			Name: strings.TrimSuffix(d.Name(), ext),
			Path: idx.relative(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("similarity: walk %s: %w", idx.Root, err)
	}
	return out, nil
}

// Query returns every candidate whose normalized name contains the normalized
// query or is contained by it. A query that normalizes to the empty string
// returns no matches.
func (idx *Index) Query(name string) ([]Match, error) {
	target := Normalize(name)
	if target == "" {
		return nil, nil
	}
	candidates, err := idx.Candidates()
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, c := range candidates {
		if !Overlaps(Normalize(c.Name), target) {
			continue
		}
		matches = append(matches, Match{Name: c.Name, Path: c.Path, Confidence: SentinelConfidence})
	}
	return matches, nil
}

func (idx *Index) relative(path string) string {
	base := idx.Base
	if base == "" {
		base = idx.Root
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}
