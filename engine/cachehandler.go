package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/record"
	"github.com/c360/biograph/storage"
)

// keyPrefix namespaces cache keys in the shared backend
const keyPrefix = "biograph:edge:"

// CacheHandler memoizes the record set produced for one execution edge
// under a composite key. A distributed lock serializes read and write of a
// key so partial writes are never served; decode failures degrade to a
// cache miss.
type CacheHandler struct {
	backend storage.Backend
	locker  storage.Locker
	catalog metakg.Catalog

	enabled   bool
	ttl       time.Duration
	chunkSize int

	logger  *slog.Logger
	metrics *metric.Metrics
}

// CacheHandlerDeps holds the cache handler's dependencies. Leaving Backend
// or Locker nil disables caching regardless of Enabled.
type CacheHandlerDeps struct {
	Backend   storage.Backend
	Locker    storage.Locker
	Catalog   metakg.Catalog
	Enabled   bool
	TTL       time.Duration
	ChunkSize int
	Logger    *slog.Logger
	Metrics   *metric.Metrics
}

// NewCacheHandler creates a cache handler
func NewCacheHandler(deps CacheHandlerDeps) *CacheHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	chunkSize := deps.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100_000
	}
	return &CacheHandler{
		backend:   deps.Backend,
		locker:    deps.Locker,
		catalog:   deps.Catalog,
		enabled:   deps.Enabled && deps.Backend != nil && deps.Locker != nil,
		ttl:       ttl,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// Enabled reports whether caching is in effect
func (c *CacheHandler) Enabled() bool { return c.enabled }

// Key computes the composite cache key for an execution edge. It folds in
// the edge's subject categories, predicates, object categories and input
// curies (each sorted for canonicalization), plus the catalog size and the
// concatenated API identifiers so the key invalidates whenever the
// universe of downstream APIs changes.
func (c *CacheHandler) Key(x *QXEdge) string {
	parts := []string{
		strings.Join(sorted(x.Subject().Categories), ","),
		strings.Join(sorted(x.Predicates()), ","),
		strings.Join(sorted(x.Object().Categories), ","),
		strings.Join(x.InputQueryCuries(), ","),
	}
	if c.catalog != nil {
		parts = append(parts,
			strconv.Itoa(c.catalog.Size()),
			strings.Join(c.catalog.APIIdentifiers(), ""),
		)
	}
	digest := xxhash.Sum64String(strings.Join(parts, "\x1f"))
	return fmt.Sprintf("%s%016x", keyPrefix, digest)
}

// Lookup returns the cached record set for the edge. The second return is
// false on miss, on disabled caching, and on any backend or decode failure.
// Recovered records get their execution-edge back-reference restored.
func (c *CacheHandler) Lookup(ctx context.Context, x *QXEdge) ([]*record.Record, bool) {
	if !c.enabled {
		return nil, false
	}

	key := c.Key(x)
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		c.logger.Warn("cache lock failed, treating as miss", "edge", x.EdgeID(), "error", err)
		c.miss()
		return nil, false
	}
	defer func() {
		if err := unlock(); err != nil {
			c.logger.Warn("cache unlock failed", "key", key, "error", err)
		}
	}()

	fields, err := c.backend.HGetAll(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "edge", x.EdgeID(), "error", err)
		c.miss()
		return nil, false
	}
	if len(fields) == 0 {
		c.miss()
		return nil, false
	}

	records, dropped := decodeChunks(fields)
	if dropped > 0 {
		c.logger.Warn("dropped malformed cached records", "edge", x.EdgeID(), "dropped", dropped)
	}
	if len(records) == 0 {
		c.miss()
		return nil, false
	}

	for _, r := range records {
		r.Edge = x
	}
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
	c.logger.Debug("cacheHit", "edge", x.EdgeID(), "records", len(records))
	return records, true
}

// Store writes the record set for the edge as ordered chunks under the
// distributed lock and arms the key's TTL. Failures are logged and
// swallowed; a failed write only costs a future cache miss.
func (c *CacheHandler) Store(ctx context.Context, x *QXEdge, records []*record.Record) {
	if !c.enabled || len(records) == 0 {
		return
	}

	chunks, err := encodeRecords(records, c.chunkSize)
	if err != nil {
		c.logger.Warn("cache encode failed, skipping store", "edge", x.EdgeID(), "error", err)
		return
	}

	key := c.Key(x)
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		c.logger.Warn("cache lock failed, skipping store", "edge", x.EdgeID(), "error", err)
		return
	}
	defer func() {
		if err := unlock(); err != nil {
			c.logger.Warn("cache unlock failed", "key", key, "error", err)
		}
	}()

	if err := c.backend.Del(ctx, key); err != nil {
		c.logger.Warn("cache clear failed, skipping store", "key", key, "error", err)
		return
	}
	for i, chunk := range chunks {
		if err := c.backend.HSet(ctx, key, strconv.Itoa(i), chunk); err != nil {
			c.logger.Warn("cache write failed", "key", key, "chunk", i, "error", err)
			return
		}
	}
	if err := c.backend.Expire(ctx, key, c.ttl); err != nil {
		c.logger.Warn("cache expire failed", "key", key, "error", err)
	}

	c.logger.Debug("cache stored", "edge", x.EdgeID(), "records", len(records), "chunks", len(chunks))
}

func (c *CacheHandler) miss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}

func sorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
