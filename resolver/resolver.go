// Package resolver defines the identifier-resolution boundary. Given a list
// of curies it returns normalized identity info per curie. A memoizing
// decorator fronts the boundary since adjacent execution edges re-resolve
// the same curies.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/biograph/pkg/cache"
	"github.com/c360/biograph/record"
)

// Resolver canonicalizes curies into normalized node info
type Resolver interface {
	// Resolve returns normalized info keyed by the input curie. Curies the
	// service cannot resolve are absent from the result; callers fall back
	// to the original identifier.
	Resolve(ctx context.Context, curies []string) (map[string]*record.NodeInfo, error)
}

// Memoized wraps a Resolver with an in-process TTL cache
type Memoized struct {
	inner  Resolver
	cache  *cache.TTL[*record.NodeInfo]
	logger *slog.Logger
}

// NewMemoized creates a memoizing resolver with the given entry TTL
func NewMemoized(ctx context.Context, inner Resolver, ttl time.Duration, logger *slog.Logger) *Memoized {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memoized{
		inner:  inner,
		cache:  cache.NewTTL[*record.NodeInfo](ctx, ttl, ttl),
		logger: logger,
	}
}

// Resolve implements Resolver, consulting the cache per curie and batching
// the misses into a single inner call.
func (m *Memoized) Resolve(ctx context.Context, curies []string) (map[string]*record.NodeInfo, error) {
	out := make(map[string]*record.NodeInfo, len(curies))
	var misses []string
	for _, c := range curies {
		if info, ok := m.cache.Get(c); ok {
			out[c] = info
		} else {
			misses = append(misses, c)
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	resolved, err := m.inner.Resolve(ctx, misses)
	if err != nil {
		return nil, err
	}
	for c, info := range resolved {
		m.cache.Set(c, info)
		out[c] = info
	}
	m.logger.Debug("resolver batch", "requested", len(curies), "misses", len(misses))
	return out, nil
}

// Close releases the memoization cache
func (m *Memoized) Close() { m.cache.Close() }

// Passthrough is a Resolver that performs no normalization. It is used when
// no resolution service is configured; every curie maps to itself.
type Passthrough struct{}

// Resolve implements Resolver
func (Passthrough) Resolve(_ context.Context, curies []string) (map[string]*record.NodeInfo, error) {
	out := make(map[string]*record.NodeInfo, len(curies))
	for _, c := range curies {
		out[c] = &record.NodeInfo{PrimaryCurie: c, EquivalentCuries: []string{c}}
	}
	return out, nil
}
