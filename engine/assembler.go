package engine

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c360/biograph/graph"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/trapi"
)

// consolidationSeparator joins per-node tokens into a consolidated result
// identifier. The unit separator cannot occur in node ids or curies.
const consolidationSeparator = "\x1f"

// preresultEntry is one record's contribution to a path through the query
// graph.
type preresultEntry struct {
	inputQNodeID  string
	outputQNodeID string
	inputCurie    string
	outputCurie   string
	qEdgeID       string
	recordHash    string
}

// mergedEntry is the positional merge of entries across a consolidation
// group.
type mergedEntry struct {
	inputQNodeID  string
	outputQNodeID string
	qEdgeID       string
	inputCuries   graph.CurieSet
	outputCuries  graph.CurieSet
	recordHashes  map[string]struct{}
}

// Assembler joins per-edge record sets into consolidated TRAPI results
type Assembler struct {
	g       *graph.QueryGraph
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewAssembler creates an assembler for the given query graph
func NewAssembler(g *graph.QueryGraph, logger *slog.Logger, metrics *metric.Metrics) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{g: g, logger: logger, metrics: metrics}
}

// Assemble enumerates complete preresults across the execution edges,
// consolidates them by is_set-aware key, and emits one TRAPI result per
// group. Within a result, bindings are sorted for determinism.
func (a *Assembler) Assemble(xedges []*QXEdge) []trapi.Result {
	start := time.Now()

	root := a.rootEdge(xedges)
	if root == nil {
		return []trapi.Result{}
	}

	var preresults [][]preresultEntry
	bindings := map[string]string{}
	visited := map[string]bool{}
	a.enumerate(xedges, root, bindings, visited, nil, &preresults)

	groups := make(map[string][][]preresultEntry)
	var order []string
	for _, pr := range preresults {
		key := a.consolidationKey(pr)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], pr)
	}

	results := make([]trapi.Result, 0, len(groups))
	for _, key := range order {
		results = append(results, a.mergeGroup(groups[key]))
	}

	a.logger.Debug("results assembled",
		"preresults", len(preresults),
		"results", len(results),
		"duration", time.Since(start),
	)
	if a.metrics != nil {
		a.metrics.ResultsEmitted.Observe(float64(len(results)))
		a.metrics.AssemblySeconds.Observe(time.Since(start).Seconds())
	}
	return results
}

// rootEdge selects the traversal root: the lowest-identifier edge with an
// endpoint that is a fixed input or that appears on only one edge.
func (a *Assembler) rootEdge(xedges []*QXEdge) *QXEdge {
	degree := map[string]int{}
	for _, x := range xedges {
		degree[x.Subject().ID]++
		degree[x.Object().ID]++
	}

	sorted := make([]*QXEdge, len(xedges))
	copy(sorted, xedges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EdgeID() < sorted[j].EdgeID() })

	for _, x := range sorted {
		for _, n := range []*graph.QNode{x.Subject(), x.Object()} {
			if n.HasCurie() || degree[n.ID] == 1 {
				return x
			}
		}
	}
	if len(sorted) > 0 {
		return sorted[0]
	}
	return nil
}

// enumerate walks the query graph as a tree, extending the running path by
// every record consistent with the curies already bound at shared nodes. A
// preresult is complete when it covers every edge.
func (a *Assembler) enumerate(
	xedges []*QXEdge,
	current *QXEdge,
	bindings map[string]string,
	visited map[string]bool,
	path []preresultEntry,
	out *[][]preresultEntry,
) {
	visited[current.EdgeID()] = true
	defer func() { visited[current.EdgeID()] = false }()

	inID := current.InputNode().ID
	outID := current.OutputNode().ID

	for _, r := range current.Records() {
		inCurie := r.InputCurie()
		outCurie := r.OutputCurie()

		if bound, ok := bindings[inID]; ok && bound != inCurie {
			continue
		}
		if bound, ok := bindings[outID]; ok && bound != outCurie {
			continue
		}

		entry := preresultEntry{
			inputQNodeID:  inID,
			outputQNodeID: outID,
			inputCurie:    inCurie,
			outputCurie:   outCurie,
			qEdgeID:       current.EdgeID(),
			recordHash:    r.Hash,
		}
		newPath := append(append([]preresultEntry(nil), path...), entry)

		hadIn, hadOut := bindings[inID], bindings[outID]
		_, okIn := bindings[inID]
		_, okOut := bindings[outID]
		bindings[inID] = inCurie
		bindings[outID] = outCurie

		if next := a.nextEdge(xedges, bindings, visited); next != nil {
			a.enumerate(xedges, next, bindings, visited, newPath, out)
		} else if len(newPath) == len(xedges) {
			*out = append(*out, newPath)
		}

		if okIn {
			bindings[inID] = hadIn
		} else {
			delete(bindings, inID)
		}
		if okOut {
			bindings[outID] = hadOut
		} else {
			delete(bindings, outID)
		}
	}
}

// nextEdge picks the lowest-identifier unvisited edge anchored on an
// already-bound node. Revisits are skipped, which also guards against
// cyclic input; cycles are rejected at validation anyway.
func (a *Assembler) nextEdge(xedges []*QXEdge, bindings map[string]string, visited map[string]bool) *QXEdge {
	var best *QXEdge
	for _, x := range xedges {
		if visited[x.EdgeID()] {
			continue
		}
		_, inBound := bindings[x.InputNode().ID]
		_, outBound := bindings[x.OutputNode().ID]
		if !inBound && !outBound {
			continue
		}
		if best == nil || x.EdgeID() < best.EdgeID() {
			best = x
		}
	}
	return best
}

// consolidationKey computes the is_set-aware identity of a preresult: one
// token per bound node, the node id alone when the node is marked is_set,
// the node id plus curie otherwise.
func (a *Assembler) consolidationKey(path []preresultEntry) string {
	tokens := map[string]struct{}{}
	addToken := func(nodeID, curie string) {
		n, ok := a.g.NodeByID(nodeID)
		if ok && n.IsSet {
			tokens[nodeID] = struct{}{}
			return
		}
		tokens[nodeID+"-"+curie] = struct{}{}
	}
	for _, e := range path {
		addToken(e.inputQNodeID, e.inputCurie)
		addToken(e.outputQNodeID, e.outputCurie)
	}

	sorted := make([]string, 0, len(tokens))
	for t := range tokens {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, consolidationSeparator)
}

// mergeGroup merges the preresults of one consolidation group positionally
// and emits the TRAPI result.
func (a *Assembler) mergeGroup(group [][]preresultEntry) trapi.Result {
	merged := make([]*mergedEntry, len(group[0]))
	for _, pr := range group {
		for i, e := range pr {
			if merged[i] == nil {
				merged[i] = &mergedEntry{
					inputQNodeID:  e.inputQNodeID,
					outputQNodeID: e.outputQNodeID,
					qEdgeID:       e.qEdgeID,
					inputCuries:   graph.NewCurieSet(),
					outputCuries:  graph.NewCurieSet(),
					recordHashes:  map[string]struct{}{},
				}
			}
			merged[i].inputCuries.Add(e.inputCurie)
			merged[i].outputCuries.Add(e.outputCurie)
			merged[i].recordHashes[e.recordHash] = struct{}{}
		}
	}

	nodeCuries := map[string]graph.CurieSet{}
	edgeHashes := map[string]map[string]struct{}{}
	for _, m := range merged {
		if nodeCuries[m.inputQNodeID] == nil {
			nodeCuries[m.inputQNodeID] = graph.NewCurieSet()
		}
		if nodeCuries[m.outputQNodeID] == nil {
			nodeCuries[m.outputQNodeID] = graph.NewCurieSet()
		}
		for c := range m.inputCuries {
			nodeCuries[m.inputQNodeID].Add(c)
		}
		for c := range m.outputCuries {
			nodeCuries[m.outputQNodeID].Add(c)
		}
		if edgeHashes[m.qEdgeID] == nil {
			edgeHashes[m.qEdgeID] = map[string]struct{}{}
		}
		for h := range m.recordHashes {
			edgeHashes[m.qEdgeID][h] = struct{}{}
		}
	}

	result := trapi.Result{
		NodeBindings: make(map[string][]trapi.Binding, len(nodeCuries)),
		EdgeBindings: make(map[string][]trapi.Binding, len(edgeHashes)),
		Score:        1.0,
	}
	for nodeID, curies := range nodeCuries {
		for _, c := range curies.Sorted() {
			result.NodeBindings[nodeID] = append(result.NodeBindings[nodeID], trapi.Binding{ID: c})
		}
	}
	for edgeID, hashes := range edgeHashes {
		sortedHashes := make([]string, 0, len(hashes))
		for h := range hashes {
			sortedHashes = append(sortedHashes, h)
		}
		sort.Strings(sortedHashes)
		for _, h := range sortedHashes {
			result.EdgeBindings[edgeID] = append(result.EdgeBindings[edgeID], trapi.Binding{ID: h})
		}
	}
	return result
}

// ReferencedHashes returns every record hash bound by the given results
func ReferencedHashes(results []trapi.Result) map[string]struct{} {
	out := map[string]struct{}{}
	for _, r := range results {
		for _, bindings := range r.EdgeBindings {
			for _, b := range bindings {
				out[b.ID] = struct{}{}
			}
		}
	}
	return out
}

// ReferencedCuries returns every curie bound by the given results
func ReferencedCuries(results []trapi.Result) map[string]struct{} {
	out := map[string]struct{}{}
	for _, r := range results {
		for _, bindings := range r.NodeBindings {
			for _, b := range bindings {
				out[b.ID] = struct{}{}
			}
		}
	}
	return out
}
