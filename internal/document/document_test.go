package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

const sampleYAML = `
nodes:
  - id: a
    position: {x: 0, y: 0}
    width: 100
    height: 40
    data: {label: Input}
  - id: b
    parentId: a
    extent: parent
    position: {x: 10, y: 10}
edges:
  - id: e1
    source: a
    target: b
viewport: {x: 5, y: 6, zoom: 1.5}
`

const sampleJSON = `{
  "nodes": [
    {"id": "a", "position": {"x": 0, "y": 0}, "width": 100, "height": 40, "data": {"label": "Input"}},
    {"id": "b", "parentId": "a", "extent": "parent", "position": {"x": 10, "y": 10}}
  ],
  "edges": [{"id": "e1", "source": "a", "target": "b"}],
  "viewport": {"x": 5, "y": 6, "zoom": 1.5}
}`

func TestParseFormatsAgree(t *testing.T) {
	fromYAML, err := Parse([]byte(sampleYAML), ".yaml")
	require.NoError(t, err)
	fromJSON, err := Parse([]byte(sampleJSON), ".json")
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)

	require.Len(t, fromYAML.Nodes, 2)
	assert.Equal(t, "Input", fromYAML.Nodes[0].Data["label"])
	require.NotNil(t, fromYAML.Nodes[1].Extent)
	assert.True(t, fromYAML.Nodes[1].Extent.Parent)
	assert.Equal(t, []flow.Edge{{ID: "e1", Source: "a", Target: "b"}}, fromYAML.Edges)
	assert.Equal(t, &geom.Transform{X: 5, Y: 6, Zoom: 1.5}, fromYAML.Viewport)
}

func TestParseEmptyYAML(t *testing.T) {
	doc, err := Parse(nil, ".yml")
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)
}

func TestParseRejectsBadExtent(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [{"id": "a", "extent": "viewport"}]}`), ".json")
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	doc, err := Parse([]byte(sampleJSON), ".json")
	require.NoError(t, err)

	for _, name := range []string{"flow.json", "flow.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(doc, path))
			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, doc, loaded)
		})
	}
}

func TestLoadWrapsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes": []}`), 0644))

	old := DebounceInterval
	DebounceInterval = 10 * time.Millisecond
	t.Cleanup(func() { DebounceInterval = old })

	ctx, cancel := context.WithCancel(context.Background())
	docs := make(chan *Document, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(doc *Document, err error) {
			if err == nil {
				docs <- doc
			}
		})
	}()

	// rewrite until the watcher is running and has seen a write
	var got *Document
	require.Eventually(t, func() bool {
		select {
		case got = <-docs:
			return true
		default:
		}
		_ = os.WriteFile(path, []byte(`{"nodes": [{"id": "n", "position": {"x": 1, "y": 2}}]}`), 0644)
		return false
	}, 5*time.Second, 50*time.Millisecond)

	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "n", got.Nodes[0].ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
