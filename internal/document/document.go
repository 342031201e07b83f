// Package document reads and writes flow documents: a node list, an edge
// list and an optional viewport, stored as JSON or YAML.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

// Document is a saved diagram.
type Document struct {
	Nodes    []flow.Node     `json:"nodes"`
	Edges    []flow.Edge     `json:"edges"`
	Viewport *geom.Transform `json:"viewport,omitempty"`
}

// Load reads the document at path. The format follows the extension;
// anything other than .yaml or .yml is read as JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document. YAML goes through the JSON encoding of the
// flow types so both formats share one schema.
func Parse(data []byte, ext string) (*Document, error) {
	if isYAML(ext) {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			return &Document{}, nil
		}
		var err error
		if data, err = json.Marshal(normalize(raw)); err != nil {
			return nil, err
		}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save writes doc to path in the format its extension names.
func Save(doc *Document, path string) error {
	data, err := Marshal(doc, filepath.Ext(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal encodes doc as YAML for a .yaml / .yml ext and as indented JSON
// otherwise.
func Marshal(doc *Document, ext string) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil || !isYAML(ext) {
		return data, err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return yaml.Marshal(raw)
}

func isYAML(ext string) bool {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// normalize turns the map[any]any values YAML produces for non-string keys
// into maps JSON can encode.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	default:
		return v
	}
}
