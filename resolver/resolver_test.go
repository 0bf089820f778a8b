package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/biograph/record"
)

type countingResolver struct {
	calls    int
	resolved []string
}

func (c *countingResolver) Resolve(_ context.Context, curies []string) (map[string]*record.NodeInfo, error) {
	c.calls++
	c.resolved = append(c.resolved, curies...)
	out := make(map[string]*record.NodeInfo, len(curies))
	for _, curie := range curies {
		out[curie] = &record.NodeInfo{PrimaryCurie: curie, Label: "label-" + curie}
	}
	return out, nil
}

func TestMemoizedBatchesMissesOnly(t *testing.T) {
	inner := &countingResolver{}
	m := NewMemoized(context.Background(), inner, time.Minute, nil)
	defer m.Close()

	ctx := context.Background()
	out, err := m.Resolve(ctx, []string{"NCBIGene:3778", "MONDO:0011122"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, inner.calls)

	// Second call: one cached, one new
	out, err = m.Resolve(ctx, []string{"NCBIGene:3778", "NCBIGene:7289"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"NCBIGene:3778", "MONDO:0011122", "NCBIGene:7289"}, inner.resolved)

	// Fully cached call does not reach the inner resolver
	_, err = m.Resolve(ctx, []string{"NCBIGene:7289"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestPassthroughMapsCuriesToThemselves(t *testing.T) {
	out, err := Passthrough{}.Resolve(context.Background(), []string{"NCBIGene:3778"})
	require.NoError(t, err)
	require.Contains(t, out, "NCBIGene:3778")
	assert.Equal(t, "NCBIGene:3778", out["NCBIGene:3778"].PrimaryCurie)
}
