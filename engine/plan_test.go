package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/biograph/trapi"
)

func TestNewPlanOrdersByEdgeID(t *testing.T) {
	plan := NewPlan(mustGraph(twoHopWire(false)))
	require.Len(t, plan, 2)
	assert.Equal(t, "e01", plan[0].EdgeID())
	assert.Equal(t, "e02", plan[1].EdgeID())
}

func TestNewPlanDirectionResolution(t *testing.T) {
	tests := []struct {
		name        string
		subjectIDs  []string
		objectIDs   []string
		wantReverse bool
	}{
		{"subject fixed", []string{"NCBIGene:1"}, nil, false},
		{"object fixed", nil, []string{"MONDO:1"}, true},
		{"both fixed, object smaller", []string{"NCBIGene:1", "NCBIGene:2"}, []string{"MONDO:1"}, true},
		{"both fixed, subject smaller", []string{"NCBIGene:1"}, []string{"MONDO:1", "MONDO:2"}, false},
		{"both fixed, equal sizes keep orientation", []string{"NCBIGene:1"}, []string{"MONDO:1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := trapi.QueryGraph{
				Nodes: map[string]trapi.QueryNode{
					"n0": {IDs: tt.subjectIDs, Categories: []string{"biolink:Gene"}},
					"n1": {IDs: tt.objectIDs, Categories: []string{"biolink:Disease"}},
				},
				Edges: map[string]trapi.QueryEdge{
					"e00": {Subject: "n0", Object: "n1"},
				},
			}
			plan := NewPlan(mustGraph(wire))
			require.Len(t, plan, 1)
			assert.Equal(t, tt.wantReverse, plan[0].Reversed())
		})
	}
}

func TestQXEdgeInputOutputNodes(t *testing.T) {
	g := mustGraph(twoHopWire(false))
	plan := NewPlan(g)
	e01 := plan[0]

	assert.Equal(t, "n1", e01.InputNode().ID)
	assert.Equal(t, "n2", e01.OutputNode().ID)

	e01.setReverse(true)
	assert.Equal(t, "n2", e01.InputNode().ID)
	assert.Equal(t, "n1", e01.OutputNode().ID)

	// Direction freezes once executed
	e01.setReverse(false)
	e01.markExecuted()
	e01.setReverse(true)
	assert.False(t, e01.Reversed())
}

func TestQXEdgeInputQueryCuries(t *testing.T) {
	g := mustGraph(twoHopWire(false))
	plan := NewPlan(g)
	e01 := plan[0]

	assert.Equal(t, []string{"NCBIGene:3778"}, e01.InputQueryCuries(),
		"declared curies feed the first execution")
	assert.True(t, e01.hasBoundInput())

	e02 := plan[1]
	assert.Equal(t, "n3", e02.InputNode().ID)
	assert.Equal(t, []string{"NCBIGene:7289"}, e02.InputQueryCuries())
}
