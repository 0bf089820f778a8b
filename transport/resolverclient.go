package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/record"
)

// ResolverClient calls the identifier-resolution service
type ResolverClient struct {
	endpoint string
	http     *http.Client
}

// NewResolverClient creates a client for the resolver at endpoint
func NewResolverClient(endpoint string, timeout time.Duration) *ResolverClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ResolverClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// resolverEntry is the service's per-curie response shape
type resolverEntry struct {
	ID struct {
		Identifier string `json:"identifier"`
		Label      string `json:"label"`
	} `json:"id"`
	EquivalentIdentifiers []struct {
		Identifier string `json:"identifier"`
	} `json:"equivalent_identifiers"`
	Type []string `json:"type"`
}

// Resolve implements resolver.Resolver
func (c *ResolverClient) Resolve(ctx context.Context, curies []string) (map[string]*record.NodeInfo, error) {
	payload, err := json.Marshal(map[string]any{"curies": curies})
	if err != nil {
		return nil, errors.Wrap(err, "ResolverClient", "Resolve", "request serialization")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "ResolverClient", "Resolve", "request construction")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrResolverUnavailable, "ResolverClient", "Resolve", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapTransient(errors.ErrResolverUnavailable, "ResolverClient", "Resolve",
			resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrResolverUnavailable, "ResolverClient", "Resolve", "response read")
	}

	var entries map[string]*resolverEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, errors.Wrap(errors.ErrResolverUnavailable, "ResolverClient", "Resolve", "response parsing")
	}

	out := make(map[string]*record.NodeInfo, len(entries))
	for curie, e := range entries {
		if e == nil {
			continue
		}
		info := &record.NodeInfo{
			PrimaryCurie: e.ID.Identifier,
			Label:        e.ID.Label,
			Categories:   e.Type,
		}
		for _, eq := range e.EquivalentIdentifiers {
			info.EquivalentCuries = append(info.EquivalentCuries, eq.Identifier)
		}
		out[curie] = info
	}
	return out, nil
}
