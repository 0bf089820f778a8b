package engine

import (
	"context"
	"sync"
	"time"

	"github.com/c360/biograph/config"
	"github.com/c360/biograph/graph"
	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/record"
	"github.com/c360/biograph/storage"
	"github.com/c360/biograph/trapi"
)

// twoHopWire is the gene-disease-gene topology used across engine tests
func twoHopWire(middleIsSet bool) trapi.QueryGraph {
	return trapi.QueryGraph{
		Nodes: map[string]trapi.QueryNode{
			"n1": {IDs: []string{"NCBIGene:3778"}, Categories: []string{"biolink:Gene"}},
			"n2": {Categories: []string{"biolink:Disease"}, IsSet: middleIsSet},
			"n3": {IDs: []string{"NCBIGene:7289"}, Categories: []string{"biolink:Gene"}},
		},
		Edges: map[string]trapi.QueryEdge{
			"e01": {Subject: "n1", Object: "n2", Predicates: []string{"biolink:related_to"}},
			"e02": {Subject: "n3", Object: "n2", Predicates: []string{"biolink:related_to"}},
		},
	}
}

func mustGraph(wire trapi.QueryGraph) *graph.QueryGraph {
	g, err := graph.New(wire)
	if err != nil {
		panic(err)
	}
	return g
}

// makeRecord builds a resolved record between two curies
func makeRecord(subject, object, predicate, api string) *record.Record {
	return &record.Record{
		Subject: record.Node{
			Original: subject,
			Info:     &record.NodeInfo{PrimaryCurie: subject, Label: "label " + subject, EquivalentCuries: []string{subject}},
		},
		Object: record.Node{
			Original: object,
			Info:     &record.NodeInfo{PrimaryCurie: object, Label: "label " + object, EquivalentCuries: []string{object}},
		},
		Predicate: predicate,
		API:       record.APIInfo{Name: api, InforesCurie: "infores:" + api},
		Source:    "infores:source-" + api,
	}
}

func testHasher() *record.Hasher {
	return record.NewHasher(config.DefaultRecordConfig().IdentityFields)
}

// twoHopCatalog answers gene->disease in both directions
func twoHopCatalog() *metakg.InMemoryCatalog {
	return metakg.NewInMemoryCatalog([]metakg.Operation{
		{
			Association: metakg.Association{
				InputType: "biolink:Gene", OutputType: "biolink:Disease",
				Predicate: "biolink:related_to", APIName: "Automat API",
			},
			SmartAPI:     metakg.SmartAPI{ID: "automat-1"},
			InforesCurie: "infores:automat",
		},
		{
			Association: metakg.Association{
				InputType: "biolink:Disease", OutputType: "biolink:Gene",
				Predicate: "biolink:related_to", APIName: "Automat API",
			},
			SmartAPI:     metakg.SmartAPI{ID: "automat-1"},
			InforesCurie: "infores:automat",
		},
	})
}

// growCatalog returns a catalog with one extra API registered
func growCatalog(base *metakg.InMemoryCatalog) *metakg.InMemoryCatalog {
	ops := base.Operations(nil, nil, nil)
	ops = append(ops, metakg.Operation{
		Association: metakg.Association{
			InputType: "biolink:Gene", OutputType: "biolink:Disease",
			Predicate: "biolink:related_to", APIName: "New API",
		},
		SmartAPI: metakg.SmartAPI{ID: "new-api-1"},
	})
	return metakg.NewInMemoryCatalog(ops)
}

// fakeBackend is an in-memory storage.Backend
type fakeBackend struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	ttls   map[string]time.Duration

	hsetCalls   int
	hgetCalls   int
	failReads   bool
	failWrites  bool
	corruptWith string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeBackend) HSet(_ context.Context, key, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return context.DeadlineExceeded
	}
	f.hsetCalls++
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]string)
	}
	f.hashes[key][field] = value
	return nil
}

func (f *fakeBackend) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, context.DeadlineExceeded
	}
	f.hgetCalls++
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	if f.corruptWith != "" {
		out["0"] = f.corruptWith
	}
	return out, nil
}

func (f *fakeBackend) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, key)
	return nil
}

func (f *fakeBackend) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = ttl
	return nil
}

func (f *fakeBackend) Ping(context.Context) error { return nil }

// fakeLocker counts acquisitions and releases
type fakeLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	failNext bool
}

func (f *fakeLocker) Lock(_ context.Context, _ string) (storage.Unlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, context.DeadlineExceeded
	}
	f.locks++
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocks++
		return nil
	}, nil
}

// fakeClient serves canned records per API name and counts calls
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	perAPI  map[string][]*record.Record
	failAPI map[string]error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		perAPI:  make(map[string][]*record.Record),
		failAPI: make(map[string]error),
	}
}

func (f *fakeClient) serve(api string, records ...*record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perAPI[api] = records
}

func (f *fakeClient) Fetch(_ context.Context, op metakg.Operation, curies []string) ([]*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	api := op.Association.APIName
	if err, ok := f.failAPI[api]; ok {
		return nil, err
	}

	// Serve only records whose input side matches the requested curies,
	// mirroring how a real API restricts on the queried identifiers.
	allowed := make(map[string]struct{}, len(curies))
	for _, c := range curies {
		allowed[c] = struct{}{}
	}
	var out []*record.Record
	for _, r := range f.perAPI[api] {
		if _, ok := allowed[r.Subject.Original]; ok {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

// cloneRecord keeps canned fixtures immutable across queries
func cloneRecord(r *record.Record) *record.Record {
	c := *r
	return &c
}

func testConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{Enabled: true, RedisHost: "localhost", RedisPort: 6379, KeyExpireSeconds: 600, ChunkSize: 100000},
		API:   config.APIConfig{Timeout: time.Second, MaxConcurrent: 4, RateLimit: 0, RateBurst: 0},
		Record: config.RecordConfig{
			IdentityFields: config.DefaultRecordConfig().IdentityFields,
			CuratedAPIs:    []string{"CTD API"},
		},
	}
}
