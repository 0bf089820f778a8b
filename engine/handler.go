package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/biograph/config"
	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/graph"
	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/record"
	"github.com/c360/biograph/resolver"
	"github.com/c360/biograph/trapi"
)

// QueryHandler drives the lookup pipeline for TRAPI queries: validate,
// plan, execute edges in cardinality order with constraint propagation,
// then assemble consolidated results and the knowledge graph.
//
// The execution loop is cooperative: edges run one at a time so every
// selection sees the entity counts updated by the previous edge. Zero
// records anywhere short-circuits to an empty answer, never an error.
type QueryHandler struct {
	catalog  metakg.Catalog
	resolver resolver.Resolver
	client   APIClient
	cache    *CacheHandler
	dumper   *RecordDumper

	cfg     *config.Config
	hasher  *record.Hasher
	logger  *slog.Logger
	metrics *metric.Metrics
}

// QueryHandlerDeps holds the handler's dependencies
type QueryHandlerDeps struct {
	Catalog  metakg.Catalog
	Resolver resolver.Resolver
	Client   APIClient
	Cache    *CacheHandler
	Dumper   *RecordDumper
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metric.Metrics
}

// NewQueryHandler creates a query handler
func NewQueryHandler(deps QueryHandlerDeps) (*QueryHandler, error) {
	if deps.Catalog == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "QueryHandler", "NewQueryHandler", "catalog required")
	}
	if deps.Client == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "QueryHandler", "NewQueryHandler", "api client required")
	}
	if deps.Config == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "QueryHandler", "NewQueryHandler", "config required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := deps.Resolver
	if res == nil {
		res = resolver.Passthrough{}
	}
	cache := deps.Cache
	if cache == nil {
		cache = NewCacheHandler(CacheHandlerDeps{Enabled: false, Logger: logger})
	}
	return &QueryHandler{
		catalog:  deps.Catalog,
		resolver: res,
		client:   deps.Client,
		cache:    cache,
		dumper:   deps.Dumper,
		cfg:      deps.Config,
		hasher:   record.NewHasher(deps.Config.Record.IdentityFields),
		logger:   logger,
		metrics:  deps.Metrics,
	}, nil
}

// Lookup executes one TRAPI query. Validation breaches return an
// invalid-classified error; every other failure mode degrades to an empty
// response carrying its logs.
func (h *QueryHandler) Lookup(ctx context.Context, req *trapi.Request) (*trapi.Response, error) {
	start := time.Now()
	queryID := uuid.NewString()
	logs := trapi.NewLogCollector()
	logger := h.logger.With("query", queryID)

	qg, err := graph.New(req.Message.QueryGraph)
	if err != nil {
		logger.Warn("query graph rejected", "error", err)
		h.countQuery("invalid")
		return nil, err
	}

	manager := NewManager(ManagerDeps{
		Graph:   qg,
		Catalog: h.catalog,
		Hasher:  h.hasher,
		Logger:  logger,
		Metrics: h.metrics,
	})
	kgBuilder := NewKGBuilder(h.cfg.Record, logger)
	manager.Subscribe(kgBuilder)

	batch := NewBatchHandler(BatchHandlerDeps{
		Catalog:  h.catalog,
		Resolver: h.resolver,
		Cache:    h.cache,
		Client:   h.client,
		Hasher:   h.hasher,
		API:      h.cfg.API,
		Logger:   logger,
		Metrics:  h.metrics,
	})

	logs.Info("query received", map[string]any{
		"nodes": len(req.Message.QueryGraph.Nodes),
		"edges": len(req.Message.QueryGraph.Edges),
	})

	empty := false
	for manager.HasPending() && !empty {
		x, err := manager.Next()
		if err != nil {
			break
		}

		records, err := batch.Query(ctx, x, logs)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrNoOperations):
			logger.Warn("no operations for edge", "edge", x.EdgeID())
			logs.Warning("no metakg operations match edge", map[string]any{"edge": x.EdgeID()})
			empty = true
			continue
		default:
			// Recoverable boundary failure: answer is empty, not an error
			logger.Error("edge execution failed", "edge", x.EdgeID(), "error", err)
			logs.Error("edge execution failed", map[string]any{"edge": x.EdgeID()})
			empty = true
			continue
		}

		manager.StoreRecords(x, records)
		h.dumper.Dump(queryID, x.EdgeID(), x.Reversed(), records)

		if len(records) == 0 {
			logger.Warn("edge returned no records", "edge", x.EdgeID())
			logs.Warning("edge returned no records", map[string]any{"edge": x.EdgeID()})
			empty = true
			continue
		}

		manager.Propagate(x)
		if manager.Exhausted() {
			logger.Warn("propagation removed all records", "edge", x.EdgeID())
			logs.Warning("no records survived filtering", map[string]any{"edge": x.EdgeID()})
			empty = true
		}
	}

	resp := trapi.NewResponse(qg.Wire())
	if !empty {
		assembler := NewAssembler(qg, logger, h.metrics)
		results := assembler.Assemble(manager.Edges())
		kgBuilder.Prune(results)
		resp.Message.Results = results
		resp.Message.KnowledgeGraph = kgBuilder.Build()
	}

	summary := map[string]any{
		"nodes":    len(resp.Message.KnowledgeGraph.Nodes),
		"edges":    len(resp.Message.KnowledgeGraph.Edges),
		"results":  len(resp.Message.Results),
		"apis":     batch.APITally(),
		"duration": time.Since(start).String(),
	}
	logs.Info("execution summary", summary)
	logger.Info("query complete",
		"nodes", len(resp.Message.KnowledgeGraph.Nodes),
		"edges", len(resp.Message.KnowledgeGraph.Edges),
		"results", len(resp.Message.Results),
		"apis", batch.APITally(),
		"duration", time.Since(start),
	)

	resp.Logs = logs.Entries()
	h.countQuery("success")
	if h.metrics != nil {
		h.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	return resp, nil
}

func (h *QueryHandler) countQuery(status string) {
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(status).Inc()
	}
}
