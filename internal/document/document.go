package document

import (
	"fmt"
	"strings"
)

// Document identifies a shared markdown file and the title line it starts
// with when an agent creates it.
type Document struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`
}

// Shared documents written by the built-in agents.
var (
	Constitution = Document{Path: "project/gemini.md", Title: "# Project Constitution"}
	Findings     = Document{Path: "project/findings.md", Title: "# Findings"}
	Architecture = Document{Path: "project/architecture.md", Title: "# System Architecture"}
	Progress     = Document{Path: "project/progress.md", Title: "# Progress"}
)

// FormatEntry renders a phase section holding a single bullet.
func FormatEntry(phase, line string) string {
	return fmt.Sprintf("\n## Phase: %s\n- %s\n", phase, strings.TrimSpace(line))
}

// Initial is the content assumed for a document that does not exist yet.
func (d Document) Initial() string {
	return d.Title + "\n"
}

// appendTo performs one unsynchronized read-modify-write of doc.
func appendTo(store Store, doc Document, entry string) error {
	content, ok, err := store.Read(doc.Path)
	if err != nil {
		return err
	}
	if !ok {
		content = doc.Initial()
	}
	return store.Write(doc.Path, content+entry)
}
