package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseGraphYAML decodes a graph definition from YAML/JSON bytes.
//
//	id: blast
//	nodes:
//	  - name: blueprint
//	    priority: 1
//	  - name: link
//	    priority: 2
//	    depends_on: [blueprint]
func ParseGraphYAML(data []byte) (Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Graph{}, fmt.Errorf("workflow: graph payload is empty")
	}
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("workflow: decode graph: %w", err)
	}
	return g.Normalized()
}

// LoadGraphReader reads a graph definition from an io.Reader.
func LoadGraphReader(r io.Reader) (Graph, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Graph{}, fmt.Errorf("workflow: read graph: %w", err)
	}
	return ParseGraphYAML(content)
}

// LoadGraphFile loads a graph definition from an explicit file path.
func LoadGraphFile(path string) (Graph, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	g, parseErr := ParseGraphYAML(content)
	if parseErr != nil {
		return Graph{}, fmt.Errorf("workflow: %s: %w", path, parseErr)
	}
	return g, nil
}

// LoadGraph returns the graph stored at path, or the built-in graph when path
// is empty.
func LoadGraph(path string) (Graph, error) {
	if path == "" {
		return DefaultGraph(), nil
	}
	return LoadGraphFile(path)
}

// MarshalGraphYAML encodes g in the format accepted by ParseGraphYAML.
func MarshalGraphYAML(g Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(g); err != nil {
		return nil, fmt.Errorf("workflow: encode graph: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("workflow: encode graph: %w", err)
	}
	return buf.Bytes(), nil
}
