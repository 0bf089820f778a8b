// Package engine implements the query-execution pipeline: plan translation,
// the edge manager with constraint propagation, the per-edge record cache
// handler, the batch sub-query dispatcher, the results assembler, and the
// knowledge-graph builder.
package engine

import (
	"sort"

	"github.com/c360/biograph/graph"
	"github.com/c360/biograph/record"
)

// QXEdge is a query edge bound to an execution direction with runtime
// state: resolved input/output curie sets and fetched records.
type QXEdge struct {
	qedge *graph.QEdge
	g     *graph.QueryGraph

	reverse  bool
	frozen   bool
	executed bool

	// predecessor is an executed edge incident to this edge's input node,
	// nil when no executed edge touches that node.
	predecessor *QXEdge

	inputCuries  map[string]graph.CurieSet
	outputCuries map[string]graph.CurieSet

	records []*record.Record
}

// newQXEdge wraps a query edge with an initial direction
func newQXEdge(g *graph.QueryGraph, e *graph.QEdge, reverse bool) *QXEdge {
	return &QXEdge{
		qedge:        e,
		g:            g,
		reverse:      reverse,
		inputCuries:  make(map[string]graph.CurieSet),
		outputCuries: make(map[string]graph.CurieSet),
	}
}

// EdgeID returns the wrapped query edge's identifier
func (x *QXEdge) EdgeID() string { return x.qedge.ID }

// Reversed reports whether subject and object roles are swapped
func (x *QXEdge) Reversed() bool { return x.reverse }

// QEdge returns the wrapped query edge
func (x *QXEdge) QEdge() *graph.QEdge { return x.qedge }

// Subject returns the edge's subject node in query-graph orientation
func (x *QXEdge) Subject() *graph.QNode { return x.g.SubjectOf(x.qedge) }

// Object returns the edge's object node in query-graph orientation
func (x *QXEdge) Object() *graph.QNode { return x.g.ObjectOf(x.qedge) }

// InputNode returns the node feeding curies into execution
func (x *QXEdge) InputNode() *graph.QNode {
	if x.reverse {
		return x.Object()
	}
	return x.Subject()
}

// OutputNode returns the node receiving curies from execution
func (x *QXEdge) OutputNode() *graph.QNode {
	if x.reverse {
		return x.Subject()
	}
	return x.Object()
}

// Predicates returns the wrapped edge's predicates
func (x *QXEdge) Predicates() []string { return x.qedge.Predicates }

// Executed reports whether the edge has been dispatched
func (x *QXEdge) Executed() bool { return x.executed }

// markExecuted freezes direction and flags completion
func (x *QXEdge) markExecuted() {
	x.executed = true
	x.frozen = true
}

// setReverse flips execution direction; a no-op once the edge has executed
func (x *QXEdge) setReverse(reverse bool) {
	if x.frozen {
		return
	}
	x.reverse = reverse
}

// Predecessor returns the execution edge that seeded this edge's input
func (x *QXEdge) Predecessor() *QXEdge { return x.predecessor }

// Records returns the currently stored records
func (x *QXEdge) Records() []*record.Record { return x.records }

// InputCuries returns the resolved curie set at the input node
func (x *QXEdge) InputCuries() graph.CurieSet {
	return x.inputCuries[x.InputNode().ID]
}

// OutputCuries returns the resolved curie set at the output node
func (x *QXEdge) OutputCuries() graph.CurieSet {
	return x.outputCuries[x.OutputNode().ID]
}

// CuriesAt returns the edge's resolved curie set at the given node, which
// must be one of its endpoints.
func (x *QXEdge) CuriesAt(nodeID string) graph.CurieSet {
	if x.InputNode().ID == nodeID {
		return x.inputCuries[nodeID]
	}
	if x.OutputNode().ID == nodeID {
		return x.outputCuries[nodeID]
	}
	return nil
}

// InputQueryCuries returns the curies to send downstream for this edge: the
// input node's resolved set when a predecessor has bound it, the node's
// declared curies otherwise.
func (x *QXEdge) InputQueryCuries() []string {
	in := x.InputNode()
	if resolved := in.ResolvedCuries(); resolved != nil && resolved.Len() > 0 {
		return resolved.Sorted()
	}
	curies := make([]string, len(in.Curies))
	copy(curies, in.Curies)
	sort.Strings(curies)
	return curies
}

// hasBoundInput reports whether the input side has concrete curies, either
// declared or resolved by a predecessor.
func (x *QXEdge) hasBoundInput() bool {
	in := x.InputNode()
	return in.HasCurie() || (in.ResolvedCuries() != nil && in.ResolvedCuries().Len() > 0)
}

// storeRecords attaches fetched records and derives the edge's resolved
// curie sets from them.
func (x *QXEdge) storeRecords(records []*record.Record) {
	for _, r := range records {
		r.Edge = x
	}
	x.records = records
	x.refreshCurieSets()
}

// refreshCurieSets recomputes input/output curie sets from stored records
func (x *QXEdge) refreshCurieSets() {
	in := make(graph.CurieSet)
	out := make(graph.CurieSet)
	for _, r := range x.records {
		in.Add(r.InputCurie())
		out.Add(r.OutputCurie())
	}
	x.inputCuries[x.InputNode().ID] = in
	x.outputCuries[x.OutputNode().ID] = out
}

// filterRecords drops records whose curie at nodeID is outside allowed,
// returning the number removed. Curie sets are refreshed when anything
// was dropped.
func (x *QXEdge) filterRecords(nodeID string, allowed graph.CurieSet) int {
	kept := x.records[:0]
	removed := 0
	for _, r := range x.records {
		var at string
		switch nodeID {
		case x.InputNode().ID:
			at = r.InputCurie()
		case x.OutputNode().ID:
			at = r.OutputCurie()
		default:
			kept = append(kept, r)
			continue
		}
		if allowed.Has(at) {
			kept = append(kept, r)
		} else {
			removed++
		}
	}
	x.records = kept
	if removed > 0 {
		x.refreshCurieSets()
	}
	return removed
}

// SharesNodeWith returns the identifiers of query nodes shared with other
func (x *QXEdge) SharesNodeWith(other *QXEdge) []string {
	var shared []string
	for _, mine := range []*graph.QNode{x.Subject(), x.Object()} {
		if mine == other.Subject() || mine == other.Object() {
			shared = append(shared, mine.ID)
		}
	}
	return shared
}
