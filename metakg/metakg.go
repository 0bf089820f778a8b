// Package metakg models the catalog of operations available across
// downstream APIs. Each operation declares the (input-type, predicate,
// output-type) association it can answer.
package metakg

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/c360/biograph/errors"
)

// Association declares what an operation can answer
type Association struct {
	InputType  string `json:"input_type" yaml:"input_type"`
	OutputType string `json:"output_type" yaml:"output_type"`
	Predicate  string `json:"predicate" yaml:"predicate"`
	APIName    string `json:"api_name" yaml:"api_name"`
}

// SmartAPI identifies the registry entry owning an operation
type SmartAPI struct {
	ID string `json:"id" yaml:"id"`
}

// Operation is one queryable association exposed by a downstream API
type Operation struct {
	Association Association `json:"association" yaml:"association"`
	SmartAPI    SmartAPI    `json:"smartapi" yaml:"smartapi"`

	// Server is the base URL of the API serving this operation
	Server string `json:"server,omitempty" yaml:"server,omitempty"`

	// InforesCurie is the information-resource curie of the owning API
	InforesCurie string `json:"infores_curie,omitempty" yaml:"infores_curie,omitempty"`

	// TRAPI marks operations served by TRAPI-native APIs
	TRAPI bool `json:"trapi,omitempty" yaml:"trapi,omitempty"`
}

// Catalog lists the operations currently registered. The engine consumes
// the catalog for sub-query expansion, cardinality proxies, and cache-key
// derivation.
type Catalog interface {
	// Operations returns every operation matching the given category and
	// predicate constraints. Empty constraint slices match everything.
	Operations(inputCategories, predicates, outputCategories []string) []Operation

	// Size returns the total number of registered operations
	Size() int

	// APIIdentifiers returns the sorted, de-duplicated smartapi ids of all
	// registered operations
	APIIdentifiers() []string
}

// InMemoryCatalog is a static Catalog backed by a slice of operations
type InMemoryCatalog struct {
	ops []Operation
}

// NewInMemoryCatalog creates a catalog over the given operations
func NewInMemoryCatalog(ops []Operation) *InMemoryCatalog {
	return &InMemoryCatalog{ops: ops}
}

// LoadCatalog reads a YAML or JSON operation list from a file
func LoadCatalog(path string) (*InMemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "metakg", "LoadCatalog", path)
	}
	var ops []Operation
	if err := yaml.Unmarshal(data, &ops); err != nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "metakg", "LoadCatalog", "operation list parsing")
	}
	return NewInMemoryCatalog(ops), nil
}

// Operations implements Catalog
func (c *InMemoryCatalog) Operations(inputCategories, predicates, outputCategories []string) []Operation {
	var out []Operation
	for _, op := range c.ops {
		if !matches(op.Association.InputType, inputCategories) {
			continue
		}
		if !matches(op.Association.OutputType, outputCategories) {
			continue
		}
		if !matches(op.Association.Predicate, predicates) {
			continue
		}
		out = append(out, op)
	}
	return out
}

// Size implements Catalog
func (c *InMemoryCatalog) Size() int { return len(c.ops) }

// APIIdentifiers implements Catalog
func (c *InMemoryCatalog) APIIdentifiers() []string {
	seen := make(map[string]struct{}, len(c.ops))
	for _, op := range c.ops {
		seen[op.SmartAPI.ID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matches(value string, constraints []string) bool {
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if c == value {
			return true
		}
	}
	return false
}
