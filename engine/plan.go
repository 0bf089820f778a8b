package engine

import (
	"sort"

	"github.com/c360/biograph/graph"
)

// NewPlan translates a validated query graph into its ordered execution
// edges. The initial direction puts concrete curies on the input side: an
// edge whose object alone is fixed executes reversed; when both endpoints
// are fixed the side with fewer curies feeds execution. Ties keep the
// query-graph orientation, and the plan is ordered by edge identifier.
func NewPlan(g *graph.QueryGraph) []*QXEdge {
	edges := g.Edges()
	plan := make([]*QXEdge, 0, len(edges))

	for _, e := range edges {
		subj, obj := g.SubjectOf(e), g.ObjectOf(e)

		reverse := false
		switch {
		case subj.HasCurie() && obj.HasCurie():
			if len(obj.Curies) < len(subj.Curies) {
				reverse = true
			}
		case obj.HasCurie():
			reverse = true
		}

		plan = append(plan, newQXEdge(g, e, reverse))
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].EdgeID() < plan[j].EdgeID() })
	return plan
}
