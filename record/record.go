// Package record defines the unit exchanged with downstream knowledge
// provider APIs and its configuration-driven fingerprint.
package record

import (
	"sort"
)

// NodeInfo is the normalized identity for one endpoint of a record, as
// returned by the identifier resolver.
type NodeInfo struct {
	PrimaryCurie     string         `json:"primary_curie"`
	Label            string         `json:"label,omitempty"`
	EquivalentCuries []string       `json:"equivalent_curies,omitempty"`
	Categories       []string       `json:"categories,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

// Node is one endpoint of a record: the original identifier as returned by
// the API plus, after resolution, its normalized info.
type Node struct {
	Original string    `json:"original"`
	Info     *NodeInfo `json:"info,omitempty"`
}

// Curie returns the canonical curie for the endpoint: the resolved primary
// curie when available, the original identifier otherwise.
func (n Node) Curie() string {
	if n.Info != nil && n.Info.PrimaryCurie != "" {
		return n.Info.PrimaryCurie
	}
	return n.Original
}

// Label returns the resolved human-readable label, empty if unresolved
func (n Node) Label() string {
	if n.Info != nil {
		return n.Info.Label
	}
	return ""
}

// APIInfo identifies the downstream API a record came from
type APIInfo struct {
	Name         string `json:"name"`
	InforesCurie string `json:"infores_curie,omitempty"`
	// TRAPI marks APIs that are themselves TRAPI-native; their edge
	// attributes are passed through unshaped.
	TRAPI bool `json:"trapi,omitempty"`
}

// EdgeContext identifies the execution edge a record was fetched for. The
// back-reference is dropped when a record is cached and restored on read.
type EdgeContext interface {
	EdgeID() string
	Reversed() bool
}

// Record is one (subject, predicate, object) observation from a downstream
// API, with provenance and open-ended attributes.
type Record struct {
	Subject      Node           `json:"subject"`
	Object       Node           `json:"object"`
	Predicate    string         `json:"predicate"`
	API          APIInfo        `json:"api"`
	Source       string         `json:"source,omitempty"`
	Publications []string       `json:"publications,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	IsSet        bool           `json:"is_set,omitempty"`

	// Hash is the configuration-driven fingerprint, set once by the batch
	// handler before records are stored or cached.
	Hash string `json:"hash,omitempty"`

	// Edge is the execution-edge back-reference; never serialized.
	Edge EdgeContext `json:"-"`
}

// InputCurie returns the curie on the record's input side, honoring the
// execution direction of the owning edge.
func (r *Record) InputCurie() string {
	if r.Edge != nil && r.Edge.Reversed() {
		return r.Object.Curie()
	}
	return r.Subject.Curie()
}

// OutputCurie returns the curie on the record's output side
func (r *Record) OutputCurie() string {
	if r.Edge != nil && r.Edge.Reversed() {
		return r.Subject.Curie()
	}
	return r.Object.Curie()
}

// SortedPublications returns publications in canonical order
func (r *Record) SortedPublications() []string {
	out := make([]string, len(r.Publications))
	copy(out, r.Publications)
	sort.Strings(out)
	return out
}
