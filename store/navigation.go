package store

import (
	"sort"
	"strings"

	"caratdash/api/models"
)

// BlankLabel names nodes whose URL parts are all empty.
const BlankLabel = "blank"

// NodeCatalog maps node ids to labels.
type NodeCatalog map[uint64]string

// NodeLabel concatenates URL parts, skipping NULLs.
func NodeLabel(parts ...*string) string {
	var b strings.Builder
	for _, p := range parts {
		if p != nil {
			b.WriteString(*p)
		}
	}
	if b.Len() == 0 {
		return BlankLabel
	}
	return b.String()
}

type edgeKey struct{ from, to uint64 }

// BuildGraph ranks transitions by weight and keeps the top K, ignoring
// self-loops. Duplicate transitions are summed first. The node set is
// recomputed from the selected edges; the catalog only supplies labels.
func BuildGraph(edges []models.TransitionEdge, topK int, catalog NodeCatalog) models.NavigationGraph {
	weights := make(map[edgeKey]uint64, len(edges))
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		weights[edgeKey{e.From, e.To}] += e.Weight
	}

	ranked := make([]models.TransitionEdge, 0, len(weights))
	for k, w := range weights {
		ranked = append(ranked, models.TransitionEdge{From: k.from, To: k.to, Weight: w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	if topK < 0 {
		topK = 0
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	seen := make(map[uint64]struct{}, 2*len(ranked))
	ids := make([]uint64, 0, 2*len(ranked))
	for _, e := range ranked {
		for _, id := range [2]uint64{e.From, e.To} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]models.Node, len(ids))
	for i, id := range ids {
		label := catalog[id]
		if label == "" {
			label = BlankLabel
		}
		nodes[i] = models.Node{ID: id, Label: label}
	}
	return models.NavigationGraph{Nodes: nodes, Edges: ranked}
}
