package graph

import "math"

// UnboundedEntityCount marks a node whose cardinality is unknown before any
// incident edge has executed. Kept well below MaxInt64 so products of two
// counts stay representable in float64 scoring.
const UnboundedEntityCount = math.MaxInt32

// QNode is a query-graph node. Identity fields are immutable after
// ingestion; entity count and resolved curies mutate during execution.
type QNode struct {
	ID         string
	Categories []string
	Curies     []string
	IsSet      bool

	entityCount int
	resolved    CurieSet
}

// newQNode builds a node with its initial cardinality estimate: the number
// of provided curies when fixed, unbounded otherwise.
func newQNode(id string, categories, curies []string, isSet bool) *QNode {
	n := &QNode{
		ID:          id,
		Categories:  categories,
		Curies:      curies,
		IsSet:       isSet,
		entityCount: UnboundedEntityCount,
	}
	if len(curies) > 0 {
		n.entityCount = len(curies)
		n.resolved = NewCurieSet(curies...)
	}
	return n
}

// HasCurie reports whether the node is a fixed input
func (n *QNode) HasCurie() bool { return len(n.Curies) > 0 }

// EntityCount returns the current cardinality estimate
func (n *QNode) EntityCount() int { return n.entityCount }

// SetEntityCount updates the cardinality estimate
func (n *QNode) SetEntityCount(count int) { n.entityCount = count }

// Bounded reports whether the cardinality estimate is known
func (n *QNode) Bounded() bool { return n.entityCount != UnboundedEntityCount }

// ResolvedCuries returns the node's resolved-curie set. A fixed node starts
// with its declared curies; any other node has nil until an incident edge
// contributes bindings.
func (n *QNode) ResolvedCuries() CurieSet { return n.resolved }

// UpdateResolved merges an edge's contribution into the node's resolved
// set: the first contribution is adopted as-is, later ones intersect. The
// set only ever shrinks after adoption, which bounds propagation.
func (n *QNode) UpdateResolved(curies CurieSet) {
	if n.resolved == nil {
		n.resolved = curies.Clone()
		return
	}
	n.resolved = n.resolved.Intersect(curies)
}

// setResolved replaces the resolved set outright, without intersecting.
func (n *QNode) setResolved(curies CurieSet) { n.resolved = curies }
