// Package transport provides the HTTP clients behind the engine's
// boundaries: the TRAPI sub-query client and the identifier-resolution
// client.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/record"
	"github.com/c360/biograph/trapi"
)

// TRAPIClient dispatches one-hop TRAPI lookups to downstream APIs
type TRAPIClient struct {
	http *http.Client
}

// NewTRAPIClient creates a client with the given per-request timeout
func NewTRAPIClient(timeout time.Duration) *TRAPIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TRAPIClient{http: &http.Client{Timeout: timeout}}
}

// Fetch implements the engine's APIClient boundary: it sends a one-hop
// TRAPI query built from the operation's association and parses the
// returned knowledge graph into records.
func (c *TRAPIClient) Fetch(ctx context.Context, op metakg.Operation, curies []string) ([]*record.Record, error) {
	if op.Server == "" {
		return nil, errors.Wrap(errors.ErrAPICallFailed, "TRAPIClient", "Fetch",
			fmt.Sprintf("operation for %s has no server", op.Association.APIName))
	}

	reqBody := trapi.Request{
		Message: trapi.RequestMessage{
			QueryGraph: trapi.QueryGraph{
				Nodes: map[string]trapi.QueryNode{
					"n0": {IDs: curies, Categories: []string{op.Association.InputType}},
					"n1": {Categories: []string{op.Association.OutputType}},
				},
				Edges: map[string]trapi.QueryEdge{
					"e0": {Subject: "n0", Object: "n1", Predicates: []string{op.Association.Predicate}},
				},
			},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "TRAPIClient", "Fetch", "request serialization")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, op.Server+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "TRAPIClient", "Fetch", "request construction")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrAPICallFailed, "TRAPIClient", "Fetch", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapTransient(errors.ErrAPICallFailed, "TRAPIClient", "Fetch",
			fmt.Sprintf("%s returned status %d", op.Association.APIName, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrAPICallFailed, "TRAPIClient", "Fetch", "response read")
	}

	var parsed trapi.Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedRecord, "TRAPIClient", "Fetch", "response parsing")
	}
	return recordsFromKG(op, parsed.Message.KnowledgeGraph), nil
}

// recordsFromKG flattens a downstream knowledge graph into records
func recordsFromKG(op metakg.Operation, kg trapi.KnowledgeGraph) []*record.Record {
	var out []*record.Record
	for _, edge := range kg.Edges {
		r := &record.Record{
			Subject:   record.Node{Original: edge.Subject},
			Object:    record.Node{Original: edge.Object},
			Predicate: edge.Predicate,
			API: record.APIInfo{
				Name:         op.Association.APIName,
				InforesCurie: op.InforesCurie,
				TRAPI:        op.TRAPI,
			},
		}
		for _, s := range edge.Sources {
			if s.ResourceRole == trapi.RolePrimary {
				r.Source = s.ResourceID
			}
		}
		for _, a := range edge.Attributes {
			if a.AttributeTypeID == "biolink:publications" {
				if pubs, ok := a.Value.([]any); ok {
					for _, p := range pubs {
						if s, ok := p.(string); ok {
							r.Publications = append(r.Publications, s)
						}
					}
				}
				continue
			}
			if r.Attributes == nil {
				r.Attributes = make(map[string]any)
			}
			r.Attributes[a.AttributeTypeID] = a.Value
		}
		out = append(out, r)
	}
	return out
}
