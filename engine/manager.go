package engine

import (
	"log/slog"
	"sort"

	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/graph"
	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/record"
)

// EdgeObserver is notified synchronously after records are stored on an
// execution edge. The knowledge-graph builder registers as an observer.
type EdgeObserver interface {
	EdgeExecuted(x *QXEdge, records []*record.Record)
}

// Manager owns the execution edges of one query: it chooses the next edge
// by expected cardinality, attaches fetched records, and propagates curie
// constraints between adjacent edges.
type Manager struct {
	g       *graph.QueryGraph
	xedges  []*QXEdge
	catalog metakg.Catalog
	hasher  *record.Hasher

	observers []EdgeObserver
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// ManagerDeps holds the manager's dependencies
type ManagerDeps struct {
	Graph   *graph.QueryGraph
	Catalog metakg.Catalog
	Hasher  *record.Hasher
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// NewManager plans the query graph and creates its edge manager
func NewManager(deps ManagerDeps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		g:       deps.Graph,
		xedges:  NewPlan(deps.Graph),
		catalog: deps.Catalog,
		hasher:  deps.Hasher,
		logger:  logger,
		metrics: deps.Metrics,
	}
}

// Subscribe registers an observer for storeRecords notifications
func (m *Manager) Subscribe(o EdgeObserver) {
	m.observers = append(m.observers, o)
}

// Edges returns the execution edges in plan order
func (m *Manager) Edges() []*QXEdge { return m.xedges }

// HasPending reports whether any edge remains unexecuted
func (m *Manager) HasPending() bool {
	for _, x := range m.xedges {
		if !x.Executed() {
			return true
		}
	}
	return false
}

// Next chooses the unexecuted edge with the lowest expected cardinality:
// the product of endpoint entity counts, or the count of matching MetaKG
// operations when neither endpoint is bounded yet. Edges with a bound
// endpoint always rank ahead of edges with none, and remaining ties
// resolve by edge identifier. The chosen edge may be flipped so its input
// side carries the smaller resolved-curie set; the direction freezes once
// the edge executes.
func (m *Manager) Next() (*QXEdge, error) {
	var best *QXEdge
	var bestScore float64

	for _, x := range m.xedges {
		if x.Executed() {
			continue
		}
		score := m.edgeScore(x)
		if best == nil || betterChoice(x, score, executable(x), best, bestScore, executable(best)) {
			best = x
			bestScore = score
		}
	}
	if best == nil {
		return nil, errors.Wrap(errors.ErrNoRecords, "EdgeManager", "Next", "no pending edges")
	}

	m.orient(best)
	best.predecessor = m.predecessorOf(best)

	m.logger.Debug("edge selected",
		"edge", best.EdgeID(),
		"score", bestScore,
		"reversed", best.Reversed(),
		"input", best.InputNode().ID,
	)
	return best, nil
}

// edgeScore estimates cardinality for edge selection
func (m *Manager) edgeScore(x *QXEdge) float64 {
	in, out := x.InputNode(), x.OutputNode()
	if !in.Bounded() && !out.Bounded() {
		// Only category information: the number of matching catalog
		// operations stands in for cardinality.
		return float64(len(m.operationsFor(x)))
	}
	return float64(in.EntityCount()) * float64(out.EntityCount())
}

// operationsFor lists catalog operations matching the edge in its current
// orientation.
func (m *Manager) operationsFor(x *QXEdge) []metakg.Operation {
	if m.catalog == nil {
		return nil
	}
	return m.catalog.Operations(x.InputNode().Categories, x.Predicates(), x.OutputNode().Categories)
}

// betterChoice ranks candidate edges. An edge with no bound endpoint
// cannot execute yet, so executability dominates; then the lower
// cardinality score; then the edge identifier.
func betterChoice(a *QXEdge, aScore float64, aBound bool, b *QXEdge, bScore float64, bBound bool) bool {
	if aBound != bBound {
		return aBound
	}
	if aScore != bScore {
		return aScore < bScore
	}
	return a.EdgeID() < b.EdgeID()
}

// executable reports whether either endpoint carries concrete curies;
// orientation puts that endpoint on the input side before dispatch.
func executable(x *QXEdge) bool {
	return boundSize(x.Subject()) > 0 || boundSize(x.Object()) > 0
}

// orient flips the edge so the side with the smaller concrete curie set
// feeds execution. Frozen edges keep their direction.
func (m *Manager) orient(x *QXEdge) {
	if x.frozen {
		return
	}
	subjSize := boundSize(x.Subject())
	objSize := boundSize(x.Object())

	switch {
	case subjSize == 0 && objSize == 0:
		// Neither side bound; keep planned direction
	case subjSize == 0:
		x.setReverse(true)
	case objSize == 0:
		x.setReverse(false)
	case objSize < subjSize:
		x.setReverse(true)
	default:
		x.setReverse(false)
	}
}

// boundSize returns the size of a node's concrete curie set, zero when
// unbound.
func boundSize(n *graph.QNode) int {
	if r := n.ResolvedCuries(); r != nil && r.Len() > 0 {
		return r.Len()
	}
	return len(n.Curies)
}

// predecessorOf finds the executed edge whose bindings seeded x's input
func (m *Manager) predecessorOf(x *QXEdge) *QXEdge {
	inID := x.InputNode().ID
	for _, other := range m.xedges {
		if other == x || !other.Executed() {
			continue
		}
		if other.InputNode().ID == inID || other.OutputNode().ID == inID {
			return other
		}
	}
	return nil
}

// StoreRecords attaches records to the edge, fingerprints them, derives the
// edge's curie sets, updates both endpoints' entity counts and resolved
// sets, and notifies observers. The edge is marked executed even when the
// record list is empty; the caller decides whether to short-circuit.
func (m *Manager) StoreRecords(x *QXEdge, records []*record.Record) {
	if m.hasher != nil {
		m.hasher.Apply(records)
	}
	x.storeRecords(records)
	x.markExecuted()

	in, out := x.InputNode(), x.OutputNode()
	inSet, outSet := x.InputCuries(), x.OutputCuries()
	in.UpdateResolved(inSet)
	out.UpdateResolved(outSet)
	in.SetEntityCount(inSet.Len())
	out.SetEntityCount(outSet.Len())

	m.logger.Debug("records stored",
		"edge", x.EdgeID(),
		"records", len(records),
		"input_curies", inSet.Len(),
		"output_curies", outSet.Len(),
	)
	if m.metrics != nil {
		m.metrics.EdgesExecuted.Inc()
	}

	for _, o := range m.observers {
		o.EdgeExecuted(x, records)
	}
}

// Propagate enforces the two-way semi-join across every node shared with
// the given edge, iterating to a fixed point: for each shared node the
// allowed curie set is the intersection of both edges' sets there, and
// records outside it are removed from both sides. Termination follows from
// the sets only ever shrinking. Returns the number of records removed.
func (m *Manager) Propagate(x *QXEdge) int {
	removed := 0
	queue := []*QXEdge{x}
	queued := map[*QXEdge]bool{x: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		queued[current] = false

		if !current.Executed() {
			continue
		}

		for _, other := range m.xedges {
			if other == current || !other.Executed() {
				continue
			}
			for _, nodeID := range current.SharesNodeWith(other) {
				a := current.CuriesAt(nodeID)
				b := other.CuriesAt(nodeID)
				if a == nil || b == nil {
					continue
				}
				allowed := a.Intersect(b)
				if allowed.Equal(a) && allowed.Equal(b) {
					continue
				}

				if n, ok := m.g.NodeByID(nodeID); ok {
					n.SetEntityCount(allowed.Len())
				}

				for _, e := range []*QXEdge{current, other} {
					dropped := e.filterRecords(nodeID, allowed)
					if dropped > 0 {
						removed += dropped
						if !queued[e] {
							queue = append(queue, e)
							queued[e] = true
						}
					}
				}
				m.syncNodeResolved(nodeID, allowed)
			}
		}
	}

	if removed > 0 {
		m.logger.Debug("propagation pruned records", "edge", x.EdgeID(), "removed", removed)
		if m.metrics != nil {
			m.metrics.RecordsPruned.Add(float64(removed))
		}
	}
	return removed
}

// syncNodeResolved pins a node's resolved set to the propagated
// intersection.
func (m *Manager) syncNodeResolved(nodeID string, allowed graph.CurieSet) {
	if n, ok := m.g.NodeByID(nodeID); ok {
		n.UpdateResolved(allowed)
	}
}

// Exhausted reports whether any executed edge has lost all its records,
// which makes the whole query terminally empty.
func (m *Manager) Exhausted() bool {
	for _, x := range m.xedges {
		if x.Executed() && len(x.Records()) == 0 {
			return true
		}
	}
	return false
}

// OrganizedEdge is one query edge's surviving records with its
// connectivity.
type OrganizedEdge struct {
	Records     []*record.Record
	ConnectedTo []string
}

// Organize returns the surviving records keyed by query-edge identifier,
// with connectivity derived from shared query nodes.
func (m *Manager) Organize() map[string]*OrganizedEdge {
	out := make(map[string]*OrganizedEdge, len(m.xedges))
	for _, x := range m.xedges {
		organized := &OrganizedEdge{Records: x.Records()}
		for _, other := range m.xedges {
			if other == x {
				continue
			}
			if len(x.SharesNodeWith(other)) > 0 {
				organized.ConnectedTo = append(organized.ConnectedTo, other.EdgeID())
			}
		}
		sort.Strings(organized.ConnectedTo)
		out[x.EdgeID()] = organized
	}
	return out
}

// Collect returns every surviving record across all edges
func (m *Manager) Collect() []*record.Record {
	var out []*record.Record
	for _, x := range m.xedges {
		out = append(out, x.Records()...)
	}
	return out
}
