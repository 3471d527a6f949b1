package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leadflow/flowd/pkg/models"
)

// graph holds the adjacency view of a workflow definition used by the
// orchestrator.
type graph struct {
	order        []string            // node IDs in definition order
	predecessors map[string][]string // target -> ordered upstream node IDs
	successors   map[string][]string
}

func buildGraph(def *models.WorkflowDefinition) *graph {
	g := &graph{
		order:        make([]string, 0, len(def.Nodes)),
		predecessors: make(map[string][]string, len(def.Nodes)),
		successors:   make(map[string][]string, len(def.Nodes)),
	}

	for _, node := range def.Nodes {
		g.order = append(g.order, node.ID)
	}

	// Edge order is preserved so input merging stays deterministic
	// regardless of completion order.
	for _, edge := range def.Edges {
		g.predecessors[edge.Target] = append(g.predecessors[edge.Target], edge.Source)
		g.successors[edge.Source] = append(g.successors[edge.Source], edge.Target)
	}

	return g
}

// topologicalOrder returns the node IDs in an order that respects every edge,
// breaking ties by definition order so runs are reproducible. It returns an
// error naming the involved nodes when the graph has a cycle.
func (g *graph) topologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indegree[id] = len(g.predecessors[id])
	}

	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}

	ready := make([]string, 0, len(g.order))

	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	sorted := make([]string, 0, len(g.order))

	for len(ready) > 0 {
		// Lowest definition position first.
		sort.Slice(ready, func(i, j int) bool {
			return position[ready[i]] < position[ready[j]]
		})

		current := ready[0]
		ready = ready[1:]
		sorted = append(sorted, current)

		for _, next := range g.successors[current] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(sorted) != len(g.order) {
		remaining := make([]string, 0)

		for _, id := range g.order {
			if indegree[id] > 0 {
				remaining = append(remaining, id)
			}
		}

		return nil, fmt.Errorf("workflow contains a cycle involving nodes: %s", strings.Join(remaining, ", "))
	}

	return sorted, nil
}
