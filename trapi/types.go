// Package trapi defines the Translator Reasoner API wire types consumed and
// produced by the engine, plus request validation against an embedded JSON
// schema.
package trapi

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/biograph/errors"
)

// Request is an incoming TRAPI query
type Request struct {
	Message     RequestMessage `json:"message"`
	Workflow    []WorkflowStep `json:"workflow,omitempty"`
	SubmitterID string         `json:"submitter,omitempty"`
}

// RequestMessage carries the query graph
type RequestMessage struct {
	QueryGraph QueryGraph `json:"query_graph"`
}

// QueryGraph is the wire form of a query graph
type QueryGraph struct {
	Nodes map[string]QueryNode `json:"nodes"`
	Edges map[string]QueryEdge `json:"edges"`
}

// QueryNode is the wire form of a query-graph node
type QueryNode struct {
	IDs        []string `json:"ids,omitempty"`
	Categories []string `json:"categories,omitempty"`
	IsSet      bool     `json:"is_set,omitempty"`
}

// QueryEdge is the wire form of a query-graph edge
type QueryEdge struct {
	Subject    string   `json:"subject"`
	Object     string   `json:"object"`
	Predicates []string `json:"predicates,omitempty"`
}

// WorkflowStep identifies a workflow operation; the engine only runs lookup
type WorkflowStep struct {
	ID string `json:"id"`
}

// Response is the complete TRAPI response envelope
type Response struct {
	Workflow []WorkflowStep  `json:"workflow"`
	Message  ResponseMessage `json:"message"`
	Logs     []LogEntry      `json:"logs"`
}

// ResponseMessage echoes the query graph and carries the answer
type ResponseMessage struct {
	QueryGraph     QueryGraph     `json:"query_graph"`
	KnowledgeGraph KnowledgeGraph `json:"knowledge_graph"`
	Results        []Result       `json:"results"`
}

// KnowledgeGraph is the aggregate of nodes and edges referenced by results
type KnowledgeGraph struct {
	Nodes map[string]KGNode `json:"nodes"`
	Edges map[string]KGEdge `json:"edges"`
}

// KGNode is an emitted knowledge-graph node
type KGNode struct {
	Name       string      `json:"name,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// KGEdge is an emitted knowledge-graph edge
type KGEdge struct {
	Predicate  string      `json:"predicate"`
	Subject    string      `json:"subject"`
	Object     string      `json:"object"`
	Sources    []Source    `json:"sources,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Source is a knowledge-source provenance entry on a KG edge
type Source struct {
	ResourceID   string `json:"resource_id"`
	ResourceRole string `json:"resource_role"`
}

// Resource roles used in edge provenance
const (
	RolePrimary    = "primary_knowledge_source"
	RoleAggregator = "aggregator_knowledge_source"
	RoleSupporting = "supporting_data_source"
)

// Attribute is an open-ended typed attribute on KG nodes and edges
type Attribute struct {
	AttributeTypeID string `json:"attribute_type_id"`
	Value           any    `json:"value"`
	ValueTypeID     string `json:"value_type_id,omitempty"`
	AttributeSource string `json:"attribute_source,omitempty"`
}

// Result is one answer satisfying the query graph topology
type Result struct {
	NodeBindings map[string][]Binding `json:"node_bindings"`
	EdgeBindings map[string][]Binding `json:"edge_bindings"`
	Score        float64              `json:"score"`
}

// Binding ties a query-graph identifier to a knowledge-graph identifier
type Binding struct {
	ID string `json:"id"`
}

// requestSchema validates the structural shape of an incoming request before
// semantic query-graph validation runs.
const requestSchema = `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {
      "type": "object",
      "required": ["query_graph"],
      "properties": {
        "query_graph": {
          "type": "object",
          "required": ["nodes", "edges"],
          "properties": {
            "nodes": {
              "type": "object",
              "additionalProperties": {
                "type": "object",
                "properties": {
                  "ids": {"type": "array", "items": {"type": "string"}},
                  "categories": {"type": "array", "items": {"type": "string"}},
                  "is_set": {"type": "boolean"}
                }
              }
            },
            "edges": {
              "type": "object",
              "additionalProperties": {
                "type": "object",
                "required": ["subject", "object"],
                "properties": {
                  "subject": {"type": "string"},
                  "object": {"type": "string"},
                  "predicates": {"type": "array", "items": {"type": "string"}}
                }
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = gojsonschema.NewStringLoader(requestSchema)

// ParseRequest decodes and schema-validates a raw TRAPI request body
func ParseRequest(body []byte) (*Request, error) {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "trapi", "ParseRequest", "request is not valid JSON")
	}
	if !result.Valid() {
		msg := "schema validation"
		if len(result.Errors()) > 0 {
			msg = result.Errors()[0].String()
		}
		return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "trapi", "ParseRequest", msg)
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidQueryGraph, "trapi", "ParseRequest", "request decoding")
	}
	return &req, nil
}

// NewResponse builds an empty response envelope echoing the query graph
func NewResponse(qg QueryGraph) *Response {
	return &Response{
		Workflow: []WorkflowStep{{ID: "lookup"}},
		Message: ResponseMessage{
			QueryGraph: qg,
			KnowledgeGraph: KnowledgeGraph{
				Nodes: map[string]KGNode{},
				Edges: map[string]KGEdge{},
			},
			Results: []Result{},
		},
		Logs: []LogEntry{},
	}
}
