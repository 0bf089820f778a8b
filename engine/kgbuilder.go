package engine

import (
	"log/slog"
	"sort"

	"github.com/c360/biograph/config"
	"github.com/c360/biograph/record"
	"github.com/c360/biograph/trapi"
)

// KGNode is the aggregate state of one knowledge-graph node across records
type KGNode struct {
	PrimaryCurie     string
	SemanticType     string
	Label            string
	EquivalentCuries map[string]struct{}
	Names            map[string]struct{}
	SourceQNodeIDs   map[string]struct{}
	TargetQNodeIDs   map[string]struct{}
	Attributes       map[string]any
}

// KGEdge is the aggregate state of one knowledge-graph edge across records
type KGEdge struct {
	Predicate     string
	Subject       string
	Object        string
	Sources       map[string]struct{}
	InforesCuries map[string]struct{}
	Publications  map[string]struct{}

	// apiAttributes holds one attribute bag per contributing API
	apiAttributes map[string]edgeAttributes
}

type edgeAttributes struct {
	api     record.APIInfo
	source  string
	curated bool
	attrs   map[string]any
}

// KGBuilder aggregates executed records into knowledge-graph nodes and
// edges. It subscribes to the edge manager and is invoked synchronously on
// every store; a final prune keeps only state referenced by the assembled
// results.
type KGBuilder struct {
	records config.RecordConfig
	logger  *slog.Logger

	nodes map[string]*KGNode
	edges map[string]*KGEdge
}

// NewKGBuilder creates an empty builder
func NewKGBuilder(records config.RecordConfig, logger *slog.Logger) *KGBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &KGBuilder{
		records: records,
		logger:  logger,
		nodes:   make(map[string]*KGNode),
		edges:   make(map[string]*KGEdge),
	}
}

// EdgeExecuted implements EdgeObserver
func (kb *KGBuilder) EdgeExecuted(x *QXEdge, records []*record.Record) {
	inID := x.InputNode().ID
	outID := x.OutputNode().ID
	for _, r := range records {
		kb.upsertNode(r, true, inID, outID)
		kb.upsertNode(r, false, inID, outID)
		kb.upsertEdge(r)
	}
}

// NodeCount returns the number of aggregated nodes
func (kb *KGBuilder) NodeCount() int { return len(kb.nodes) }

// EdgeCount returns the number of aggregated edges
func (kb *KGBuilder) EdgeCount() int { return len(kb.edges) }

func (kb *KGBuilder) upsertNode(r *record.Record, subjectSide bool, inID, outID string) {
	var n record.Node
	var qNodeID string
	reversed := r.Edge != nil && r.Edge.Reversed()
	if subjectSide {
		n = r.Subject
		qNodeID = inID
		if reversed {
			qNodeID = outID
		}
	} else {
		n = r.Object
		qNodeID = outID
		if reversed {
			qNodeID = inID
		}
	}

	curie := n.Curie()
	node, ok := kb.nodes[curie]
	if !ok {
		node = &KGNode{
			PrimaryCurie:     curie,
			EquivalentCuries: map[string]struct{}{},
			Names:            map[string]struct{}{},
			SourceQNodeIDs:   map[string]struct{}{},
			TargetQNodeIDs:   map[string]struct{}{},
			Attributes:       map[string]any{},
		}
		kb.nodes[curie] = node
	}

	if n.Info != nil {
		if node.Label == "" {
			node.Label = n.Info.Label
		}
		if node.SemanticType == "" && len(n.Info.Categories) > 0 {
			node.SemanticType = n.Info.Categories[0]
		}
		for _, eq := range n.Info.EquivalentCuries {
			node.EquivalentCuries[eq] = struct{}{}
		}
		if n.Info.Label != "" {
			node.Names[n.Info.Label] = struct{}{}
		}
		for k, v := range n.Info.Attributes {
			node.Attributes[k] = v
		}
	}
	node.EquivalentCuries[n.Original] = struct{}{}

	if subjectSide {
		node.SourceQNodeIDs[qNodeID] = struct{}{}
	} else {
		node.TargetQNodeIDs[qNodeID] = struct{}{}
	}
}

func (kb *KGBuilder) upsertEdge(r *record.Record) {
	edge, ok := kb.edges[r.Hash]
	if !ok {
		edge = &KGEdge{
			Predicate:     r.Predicate,
			Subject:       r.Subject.Curie(),
			Object:        r.Object.Curie(),
			Sources:       map[string]struct{}{},
			InforesCuries: map[string]struct{}{},
			Publications:  map[string]struct{}{},
			apiAttributes: map[string]edgeAttributes{},
		}
		kb.edges[r.Hash] = edge
	}

	if r.Source != "" {
		edge.Sources[r.Source] = struct{}{}
	}
	if r.API.InforesCurie != "" {
		edge.InforesCuries[r.API.InforesCurie] = struct{}{}
	}
	for _, p := range r.Publications {
		edge.Publications[p] = struct{}{}
	}
	edge.apiAttributes[r.API.Name] = edgeAttributes{
		api:     r.API,
		source:  r.Source,
		curated: kb.records.IsCurated(r.API.Name),
		attrs:   r.Attributes,
	}
}

// Prune removes every node and edge not referenced by the assembled
// results.
func (kb *KGBuilder) Prune(results []trapi.Result) {
	keepCuries := ReferencedCuries(results)
	keepHashes := ReferencedHashes(results)

	for curie := range kb.nodes {
		if _, ok := keepCuries[curie]; !ok {
			delete(kb.nodes, curie)
		}
	}
	for hash := range kb.edges {
		if _, ok := keepHashes[hash]; !ok {
			delete(kb.edges, hash)
		}
	}
}

// Build emits the TRAPI knowledge graph
func (kb *KGBuilder) Build() trapi.KnowledgeGraph {
	kg := trapi.KnowledgeGraph{
		Nodes: make(map[string]trapi.KGNode, len(kb.nodes)),
		Edges: make(map[string]trapi.KGEdge, len(kb.edges)),
	}

	for curie, n := range kb.nodes {
		out := trapi.KGNode{Name: n.Label}
		if n.SemanticType != "" {
			out.Categories = []string{n.SemanticType}
		}
		if len(n.EquivalentCuries) > 0 {
			out.Attributes = append(out.Attributes, trapi.Attribute{
				AttributeTypeID: "biolink:xref",
				Value:           sortedKeys(n.EquivalentCuries),
			})
		}
		if len(n.Names) > 0 {
			out.Attributes = append(out.Attributes, trapi.Attribute{
				AttributeTypeID: "biolink:synonym",
				Value:           sortedKeys(n.Names),
			})
		}
		kg.Nodes[curie] = out
	}

	for hash, e := range kb.edges {
		out := trapi.KGEdge{
			Predicate: e.Predicate,
			Subject:   e.Subject,
			Object:    e.Object,
		}
		if len(e.Publications) > 0 {
			out.Attributes = append(out.Attributes, trapi.Attribute{
				AttributeTypeID: "biolink:publications",
				Value:           sortedKeys(e.Publications),
			})
		}

		apiNames := make([]string, 0, len(e.apiAttributes))
		for name := range e.apiAttributes {
			apiNames = append(apiNames, name)
		}
		sort.Strings(apiNames)
		for _, name := range apiNames {
			out.Sources = append(out.Sources, kb.shapeSources(e.apiAttributes[name])...)
			out.Attributes = append(out.Attributes, kb.shapeAttributes(e.apiAttributes[name])...)
		}
		kg.Edges[hash] = out
	}
	return kg
}

// shapeSources derives provenance entries from one API's contribution.
// TRAPI-native APIs pass their provenance through; curated direct sources
// report the API as primary with the record's source as supporting; everything
// else reports the upstream source as primary and the API as aggregator.
func (kb *KGBuilder) shapeSources(ea edgeAttributes) []trapi.Source {
	switch {
	case ea.api.TRAPI:
		if ea.source == "" {
			return nil
		}
		return []trapi.Source{{ResourceID: ea.source, ResourceRole: trapi.RolePrimary}}
	case ea.curated:
		out := []trapi.Source{{ResourceID: ea.api.InforesCurie, ResourceRole: trapi.RolePrimary}}
		if ea.source != "" {
			out = append(out, trapi.Source{ResourceID: ea.source, ResourceRole: trapi.RoleSupporting})
		}
		return out
	default:
		var out []trapi.Source
		if ea.source != "" {
			out = append(out, trapi.Source{ResourceID: ea.source, ResourceRole: trapi.RolePrimary})
		}
		if ea.api.InforesCurie != "" {
			out = append(out, trapi.Source{ResourceID: ea.api.InforesCurie, ResourceRole: trapi.RoleAggregator})
		}
		return out
	}
}

// shapeAttributes emits one API's attribute bag. TRAPI-native attribute
// bags pass through unshaped; others are tagged with their originating API.
func (kb *KGBuilder) shapeAttributes(ea edgeAttributes) []trapi.Attribute {
	if len(ea.attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ea.attrs))
	for k := range ea.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]trapi.Attribute, 0, len(keys))
	for _, k := range keys {
		attr := trapi.Attribute{AttributeTypeID: k, Value: ea.attrs[k]}
		if !ea.api.TRAPI {
			attr.AttributeSource = ea.api.Name
		}
		out = append(out, attr)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
