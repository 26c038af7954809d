package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caratdash/api/models"
)

func TestBuildGraphRanksAndDropsSelfLoops(t *testing.T) {
	edges := []models.TransitionEdge{
		{From: 1, To: 2, Weight: 10},
		{From: 2, To: 1, Weight: 7},
		{From: 1, To: 1, Weight: 99},
	}
	catalog := NodeCatalog{1: "/top", 2: "/spec"}

	g := BuildGraph(edges, 2, catalog)

	assert.Equal(t, []models.TransitionEdge{
		{From: 1, To: 2, Weight: 10},
		{From: 2, To: 1, Weight: 7},
	}, g.Edges)
	assert.Equal(t, []models.Node{
		{ID: 1, Label: "/top"},
		{ID: 2, Label: "/spec"},
	}, g.Nodes)
}

func TestBuildGraphTopKAndClosure(t *testing.T) {
	edges := []models.TransitionEdge{
		{From: 5, To: 6, Weight: 3},
		{From: 1, To: 2, Weight: 9},
		{From: 3, To: 4, Weight: 9},
		{From: 2, To: 3, Weight: 1},
	}
	catalog := NodeCatalog{1: "a", 2: "b", 3: "c", 4: "d", 5: "e", 6: "f", 99: "unused"}

	g := BuildGraph(edges, 2, catalog)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, models.TransitionEdge{From: 1, To: 2, Weight: 9}, g.Edges[0], "ties break by source id")
	assert.Equal(t, models.TransitionEdge{From: 3, To: 4, Weight: 9}, g.Edges[1])

	ids := make([]uint64, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, ids)
}

func TestBuildGraphSumsDuplicates(t *testing.T) {
	edges := []models.TransitionEdge{
		{From: 1, To: 2, Weight: 4},
		{From: 3, To: 1, Weight: 6},
		{From: 1, To: 2, Weight: 4},
	}

	g := BuildGraph(edges, 10, nil)

	assert.Equal(t, []models.TransitionEdge{
		{From: 1, To: 2, Weight: 8},
		{From: 3, To: 1, Weight: 6},
	}, g.Edges)
	for _, n := range g.Nodes {
		assert.Equal(t, BlankLabel, n.Label)
	}
}

func TestBuildGraphEmpty(t *testing.T) {
	g := BuildGraph(nil, SankeyTopK, NodeCatalog{1: "x"})
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Nodes)

	raw, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, string(raw))
}

func TestNodeLabel(t *testing.T) {
	assert.Equal(t, "example.com/cars?id=1", NodeLabel(strptr("example.com"), strptr("/cars"), strptr("?id=1")))
	assert.Equal(t, "example.com", NodeLabel(strptr("example.com"), nil, nil))
	assert.Equal(t, BlankLabel, NodeLabel(nil, nil, nil))
	assert.Equal(t, BlankLabel, NodeLabel(strptr(""), strptr("")))
}
