// Package graph models the client-supplied query graph: typed nodes and
// edges held in an arena-style node table, with validation and biolink
// category normalization at ingestion.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/trapi"
)

// QEdge is a query-graph edge. Endpoints are indices into the owning
// graph's node table.
type QEdge struct {
	ID         string
	Subject    int
	Object     int
	Predicates []string
}

// QueryGraph holds the node table and edge list for one query
type QueryGraph struct {
	nodes     []*QNode
	nodeIndex map[string]int
	edges     []*QEdge
	wire      trapi.QueryGraph
}

// categoryExpansions adds implied categories at ingestion. A node declared
// Protein also matches Gene operations to cover isoform-level lookups.
var categoryExpansions = map[string][]string{
	"biolink:Protein": {"biolink:Gene"},
}

// New ingests and validates a TRAPI query graph. It fails with an
// invalid-classified error when an edge references a missing node, a node
// is unreachable, the graph contains a cycle, or no node carries curies.
func New(wire trapi.QueryGraph) (*QueryGraph, error) {
	if len(wire.Nodes) == 0 || len(wire.Edges) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "QueryGraph", "New",
			"query graph requires at least one node and one edge")
	}

	g := &QueryGraph{
		nodeIndex: make(map[string]int, len(wire.Nodes)),
		wire:      wire,
	}

	// Deterministic node table order
	nodeIDs := make([]string, 0, len(wire.Nodes))
	for id := range wire.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	for _, id := range nodeIDs {
		wn := wire.Nodes[id]
		g.nodeIndex[id] = len(g.nodes)
		g.nodes = append(g.nodes, newQNode(id, normalizeCategories(wn.Categories), wn.IDs, wn.IsSet))
	}

	edgeIDs := make([]string, 0, len(wire.Edges))
	for id := range wire.Edges {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Strings(edgeIDs)

	// Union-find over node indices detects cycles as edges are added
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for _, id := range edgeIDs {
		we := wire.Edges[id]
		si, ok := g.nodeIndex[we.Subject]
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "QueryGraph", "New",
				fmt.Sprintf("edge %s references unknown node %s", id, we.Subject))
		}
		oi, ok := g.nodeIndex[we.Object]
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "QueryGraph", "New",
				fmt.Sprintf("edge %s references unknown node %s", id, we.Object))
		}

		rs, ro := find(si), find(oi)
		if rs == ro {
			return nil, errors.WrapInvalid(errors.ErrCyclicQueryGraph, "QueryGraph", "New",
				fmt.Sprintf("edge %s closes a cycle", id))
		}
		parent[rs] = ro

		g.edges = append(g.edges, &QEdge{
			ID:         id,
			Subject:    si,
			Object:     oi,
			Predicates: normalizePredicates(we.Predicates),
		})
	}

	// Connectivity: with cycles excluded, a connected graph has exactly
	// one union-find root.
	root := find(0)
	for i := 1; i < len(g.nodes); i++ {
		if find(i) != root {
			return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "QueryGraph", "New",
				fmt.Sprintf("node %s is not reachable", g.nodes[i].ID))
		}
	}

	fixed := false
	for _, n := range g.nodes {
		if n.HasCurie() {
			fixed = true
			break
		}
	}
	if !fixed {
		return nil, errors.WrapInvalid(errors.ErrNoFixedInput, "QueryGraph", "New",
			"at least one node must declare curies")
	}

	return g, nil
}

// Node returns the node at the given table index
func (g *QueryGraph) Node(i int) *QNode { return g.nodes[i] }

// NodeByID returns the node with the given identifier
func (g *QueryGraph) NodeByID(id string) (*QNode, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Nodes returns the node table in ingestion order
func (g *QueryGraph) Nodes() []*QNode { return g.nodes }

// Edges returns the edges in identifier order
func (g *QueryGraph) Edges() []*QEdge { return g.edges }

// SubjectOf resolves an edge's subject node
func (g *QueryGraph) SubjectOf(e *QEdge) *QNode { return g.nodes[e.Subject] }

// ObjectOf resolves an edge's object node
func (g *QueryGraph) ObjectOf(e *QEdge) *QNode { return g.nodes[e.Object] }

// Wire returns the original wire form for echoing in responses
func (g *QueryGraph) Wire() trapi.QueryGraph { return g.wire }

// EdgesTouching returns every edge incident on the node with the given
// identifier.
func (g *QueryGraph) EdgesTouching(nodeID string) []*QEdge {
	i, ok := g.nodeIndex[nodeID]
	if !ok {
		return nil
	}
	var out []*QEdge
	for _, e := range g.edges {
		if e.Subject == i || e.Object == i {
			out = append(out, e)
		}
	}
	return out
}

func normalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	for _, c := range categories {
		c = biolinkTerm(c)
		add(c)
		for _, implied := range categoryExpansions[c] {
			add(implied)
		}
	}
	return out
}

func normalizePredicates(predicates []string) []string {
	out := make([]string, 0, len(predicates))
	for _, p := range predicates {
		out = append(out, biolinkTerm(p))
	}
	return out
}

// biolinkTerm ensures the biolink prefix on a taxonomy term
func biolinkTerm(term string) string {
	if term == "" || strings.HasPrefix(term, "biolink:") {
		return term
	}
	return "biolink:" + term
}
