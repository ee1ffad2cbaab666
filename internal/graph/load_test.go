package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGraph(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeGraph(t, `{
		"graph_id": "demo",
		"nodes": [
			{"id": "n1", "title": "Get Entity", "pos": {"x": 100, "y": 200}},
			{"id": "n2", "title": "Set Position", "pos": {"x": 500, "y": 200}}
		],
		"edges": [
			{"src_node": "n1", "dst_node": "n2", "src_port": "out0", "dst_port": "in0"}
		]
	}`)

	m, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.GraphID)
	assert.Equal(t, []string{"n1", "n2"}, m.SortedNodeIDs())
	assert.Equal(t, 100.0, m.Node("n1").Pos.X)
	require.Len(t, m.Edges, 1)
	assert.Equal(t, "n2", m.Edges[0].DstNode)
}

func TestLoadJSONRejectsDanglingEdge(t *testing.T) {
	path := writeGraph(t, `{
		"graph_id": "demo",
		"nodes": [{"id": "n1", "title": "A", "pos": {"x": 0, "y": 0}}],
		"edges": [{"src_node": "n1", "dst_node": "ghost"}]
	}`)

	_, err := LoadJSON(path)
	assert.ErrorContains(t, err, "unknown node")
}

func TestLoadJSONRequiresGraphID(t *testing.T) {
	path := writeGraph(t, `{"nodes": []}`)
	_, err := LoadJSON(path)
	assert.ErrorContains(t, err, "graph_id")
}
