package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/biograph/config"
	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/pkg/retry"
	"github.com/c360/biograph/record"
	"github.com/c360/biograph/resolver"
	"github.com/c360/biograph/trapi"
)

// APIClient executes one concrete sub-query against a downstream API. The
// HTTP transport lives behind this boundary; the engine only sees records.
type APIClient interface {
	Fetch(ctx context.Context, op metakg.Operation, curies []string) ([]*record.Record, error)
}

// BatchHandler turns one execution edge into concrete per-API sub-queries:
// consult the cache, expand the edge through the catalog, fan out with
// bounded concurrency, resolve result identifiers, and write back to cache.
type BatchHandler struct {
	catalog  metakg.Catalog
	resolver resolver.Resolver
	cache    *CacheHandler
	client   APIClient
	hasher   *record.Hasher

	timeout       time.Duration
	maxConcurrent int
	retryCfg      retry.Config

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int

	tallyMu sync.Mutex
	tally   map[string]*APIOutcome

	logger  *slog.Logger
	metrics *metric.Metrics
}

// APIOutcome counts one API's sub-query results within a single query
type APIOutcome struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// BatchHandlerDeps holds the batch handler's dependencies
type BatchHandlerDeps struct {
	Catalog  metakg.Catalog
	Resolver resolver.Resolver
	Cache    *CacheHandler
	Client   APIClient
	Hasher   *record.Hasher
	API      config.APIConfig
	Logger   *slog.Logger
	Metrics  *metric.Metrics
}

// NewBatchHandler creates a batch handler
func NewBatchHandler(deps BatchHandlerDeps) *BatchHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := deps.API.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	timeout := deps.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Limit(deps.API.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := deps.API.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &BatchHandler{
		catalog:       deps.Catalog,
		resolver:      deps.Resolver,
		cache:         deps.Cache,
		client:        deps.Client,
		hasher:        deps.Hasher,
		timeout:       timeout,
		maxConcurrent: maxConcurrent,
		retryCfg:      retry.DefaultConfig(),
		limiters:      make(map[string]*rate.Limiter),
		tally:         make(map[string]*APIOutcome),
		rateLimit:     limit,
		rateBurst:     burst,
		logger:        logger,
		metrics:       deps.Metrics,
	}
}

// Query fetches the record set for one execution edge. It returns
// ErrNoOperations when the catalog has nothing for the edge; per-API
// failures are logged and treated as zero records for that API only.
func (b *BatchHandler) Query(ctx context.Context, x *QXEdge, logs *trapi.LogCollector) ([]*record.Record, error) {
	if cached, ok := b.cache.Lookup(ctx, x); ok {
		if logs != nil {
			logs.Debug("cacheHit", map[string]any{"edge": x.EdgeID(), "records": len(cached)})
		}
		return cached, nil
	}

	ops := b.catalog.Operations(x.InputNode().Categories, x.Predicates(), x.OutputNode().Categories)
	if len(ops) == 0 {
		return nil, errors.Wrap(errors.ErrNoOperations, "BatchHandler", "Query", x.EdgeID())
	}

	curies := x.InputQueryCuries()
	b.logger.Debug("dispatching sub-queries",
		"edge", x.EdgeID(), "operations", len(ops), "input_curies", len(curies))

	var mu sync.Mutex
	var records []*record.Record

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrent)
	for _, op := range ops {
		op := op
		g.Go(func() error {
			recs, err := b.fetchOne(gctx, op, curies)
			if err != nil {
				// Per-API failure: logged and counted, never aborts the edge
				b.logger.Warn("sub-query failed",
					"edge", x.EdgeID(), "api", op.Association.APIName, "error", err)
				if logs != nil {
					logs.Warning("api call failed", map[string]any{
						"edge": x.EdgeID(), "api": op.Association.APIName,
					})
				}
				b.countCall(op.Association.APIName, "error")
				return nil
			}
			b.countCall(op.Association.APIName, "success")
			if b.metrics != nil {
				b.metrics.RecordsFetched.WithLabelValues(op.Association.APIName).Add(float64(len(recs)))
			}
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WrapTransient(err, "BatchHandler", "Query", "sub-query fan-out")
	}

	if len(records) == 0 {
		return nil, nil
	}

	if err := b.resolve(ctx, records); err != nil {
		// Unresolved records keep their original identifiers
		b.logger.Warn("identifier resolution failed", "edge", x.EdgeID(), "error", err)
	}
	if b.hasher != nil {
		b.hasher.Apply(records)
	}
	b.cache.Store(ctx, x, records)
	return records, nil
}

// fetchOne runs one sub-query with rate limiting, timeout and retry
func (b *BatchHandler) fetchOne(ctx context.Context, op metakg.Operation, curies []string) ([]*record.Record, error) {
	if err := b.limiter(op.Association.APIName).Wait(ctx); err != nil {
		return nil, err
	}

	recs, err := retry.DoWithResult(ctx, b.retryCfg, func() ([]*record.Record, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.client.Fetch(callCtx, op, curies)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrAPICallFailed, "BatchHandler", "fetchOne", err.Error())
	}
	return recs, nil
}

// limiter returns the per-API rate limiter, creating it on first use
func (b *BatchHandler) limiter(apiName string) *rate.Limiter {
	b.limiterMu.Lock()
	defer b.limiterMu.Unlock()
	l, ok := b.limiters[apiName]
	if !ok {
		l = rate.NewLimiter(b.rateLimit, b.rateBurst)
		b.limiters[apiName] = l
	}
	return l
}

// resolve canonicalizes every endpoint curie through the resolver and
// attaches the normalized info to each record.
func (b *BatchHandler) resolve(ctx context.Context, records []*record.Record) error {
	seen := make(map[string]struct{})
	var curies []string
	for _, r := range records {
		for _, original := range []string{r.Subject.Original, r.Object.Original} {
			if _, ok := seen[original]; !ok {
				seen[original] = struct{}{}
				curies = append(curies, original)
			}
		}
	}

	resolved, err := b.resolver.Resolve(ctx, curies)
	if err != nil {
		return err
	}
	for _, r := range records {
		if info, ok := resolved[r.Subject.Original]; ok {
			r.Subject.Info = info
		}
		if info, ok := resolved[r.Object.Original]; ok {
			r.Object.Info = info
		}
	}
	return nil
}

func (b *BatchHandler) countCall(apiName, status string) {
	if b.metrics != nil {
		b.metrics.APICalls.WithLabelValues(apiName, status).Inc()
	}
	b.tallyMu.Lock()
	defer b.tallyMu.Unlock()
	o, ok := b.tally[apiName]
	if !ok {
		o = &APIOutcome{}
		b.tally[apiName] = o
	}
	if status == "success" {
		o.Success++
	} else {
		o.Failure++
	}
}

// APITally returns per-API success/failure counts accumulated so far
func (b *BatchHandler) APITally() map[string]APIOutcome {
	b.tallyMu.Lock()
	defer b.tallyMu.Unlock()
	out := make(map[string]APIOutcome, len(b.tally))
	for api, o := range b.tally {
		out[api] = *o
	}
	return out
}
