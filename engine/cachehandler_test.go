package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacheHandler(backend *fakeBackend, locker *fakeLocker) *CacheHandler {
	return NewCacheHandler(CacheHandlerDeps{
		Backend:   backend,
		Locker:    locker,
		Catalog:   twoHopCatalog(),
		Enabled:   true,
		TTL:       600 * time.Second,
		ChunkSize: 64,
	})
}

func planFirstEdge(t *testing.T) *QXEdge {
	t.Helper()
	return NewPlan(mustGraph(twoHopWire(false)))[0]
}

func TestCacheStoreLookupRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	locker := &fakeLocker{}
	c := newTestCacheHandler(backend, locker)
	x := planFirstEdge(t)

	records := codecFixture()
	c.Store(context.Background(), x, records)

	got, hit := c.Lookup(context.Background(), x)
	require.True(t, hit)
	require.Len(t, got, len(records))
	for i := range records {
		assert.Equal(t, records[i].Hash, got[i].Hash)
		assert.Same(t, x, got[i].Edge, "back-reference restored on read")
	}

	// Locks are acquired and released on both paths
	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)

	// The TTL is armed after the write
	assert.Equal(t, 600*time.Second, backend.ttls[c.Key(x)])
}

func TestCacheMissOnEmptyKey(t *testing.T) {
	c := newTestCacheHandler(newFakeBackend(), &fakeLocker{})
	x := planFirstEdge(t)

	_, hit := c.Lookup(context.Background(), x)
	assert.False(t, hit)
}

func TestCacheDisabledPathTouchesNothing(t *testing.T) {
	backend := newFakeBackend()
	locker := &fakeLocker{}
	c := NewCacheHandler(CacheHandlerDeps{
		Backend: backend,
		Locker:  locker,
		Enabled: false,
	})
	x := planFirstEdge(t)

	_, hit := c.Lookup(context.Background(), x)
	assert.False(t, hit)
	c.Store(context.Background(), x, codecFixture())

	assert.Zero(t, locker.locks, "disabled caching must not acquire locks")
	assert.Zero(t, backend.hsetCalls)
	assert.Zero(t, backend.hgetCalls)
}

func TestCacheNilBackendDisables(t *testing.T) {
	c := NewCacheHandler(CacheHandlerDeps{Enabled: true})
	assert.False(t, c.Enabled())
}

func TestCacheLockFailureDegradesToMiss(t *testing.T) {
	backend := newFakeBackend()
	locker := &fakeLocker{}
	c := newTestCacheHandler(backend, locker)
	x := planFirstEdge(t)
	c.Store(context.Background(), x, codecFixture())

	locker.failNext = true
	_, hit := c.Lookup(context.Background(), x)
	assert.False(t, hit)
}

func TestCacheReadFailureDegradesToMiss(t *testing.T) {
	backend := newFakeBackend()
	locker := &fakeLocker{}
	c := newTestCacheHandler(backend, locker)
	x := planFirstEdge(t)
	c.Store(context.Background(), x, codecFixture())

	backend.failReads = true
	_, hit := c.Lookup(context.Background(), x)
	assert.False(t, hit)
	assert.Equal(t, locker.locks, locker.unlocks, "lock released on the failure path")
}

func TestCacheCorruptEntryRecoversSurvivors(t *testing.T) {
	backend := newFakeBackend()
	locker := &fakeLocker{}
	c := NewCacheHandler(CacheHandlerDeps{
		Backend:   backend,
		Locker:    locker,
		Catalog:   twoHopCatalog(),
		Enabled:   true,
		ChunkSize: 100_000,
	})
	x := planFirstEdge(t)
	c.Store(context.Background(), x, codecFixture())

	// Prepend garbage followed by the delimiter: the fixture's tokens decode,
	// the garbage token drops
	backend.corruptWith = "@@corrupt@@," + backend.hashes[c.Key(x)]["0"]
	got, hit := c.Lookup(context.Background(), x)
	require.True(t, hit)
	assert.Len(t, got, len(codecFixture()))
}

func TestCacheKeyCanonicalization(t *testing.T) {
	c := newTestCacheHandler(newFakeBackend(), &fakeLocker{})

	g1 := mustGraph(twoHopWire(false))
	x1 := NewPlan(g1)[0]
	key1 := c.Key(x1)

	// Permuting category order within a node must not change the key
	wire := twoHopWire(false)
	n1 := wire.Nodes["n1"]
	n1.Categories = []string{"biolink:Gene", "biolink:Protein"}
	n2 := wire.Nodes["n2"]
	n2.Categories = []string{"biolink:Disease", "biolink:PhenotypicFeature"}
	wire.Nodes["n1"] = n1
	wire.Nodes["n2"] = n2

	permuted := twoHopWire(false)
	p1 := permuted.Nodes["n1"]
	p1.Categories = []string{"biolink:Protein", "biolink:Gene"}
	p2 := permuted.Nodes["n2"]
	p2.Categories = []string{"biolink:PhenotypicFeature", "biolink:Disease"}
	permuted.Nodes["n1"] = p1
	permuted.Nodes["n2"] = p2

	keyA := c.Key(NewPlan(mustGraph(wire))[0])
	keyB := c.Key(NewPlan(mustGraph(permuted))[0])
	assert.Equal(t, keyA, keyB, "category order inside a set is canonical")
	assert.NotEqual(t, key1, keyA, "different category sets produce different keys")
}

func TestCacheKeyDependsOnCatalog(t *testing.T) {
	backend := newFakeBackend()
	locker := &fakeLocker{}
	x := planFirstEdge(t)

	withCatalog := newTestCacheHandler(backend, locker)
	grown := twoHopCatalog()
	larger := NewCacheHandler(CacheHandlerDeps{
		Backend: backend,
		Locker:  locker,
		Catalog: growCatalog(grown),
		Enabled: true,
	})

	assert.NotEqual(t, withCatalog.Key(x), larger.Key(x),
		"a changed API universe must invalidate the key")
}
