package graph

import "github.com/PFerreria/Concilium/pkg/models"

const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // finished
)

// findBackEdges runs a depth-first search with colouring and returns every edge
// pointing at a step still on the DFS path. Start steps are explored first,
// then the remaining steps in input order, so the result is deterministic.
func findBackEdges(g *models.WorkflowGraph) []models.Edge {
	color := make(map[string]int, len(g.Steps))

	var backEdges []models.Edge

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray

		for _, next := range g.Steps[id].Next {
			switch color[next] {
			case gray:
				backEdges = append(backEdges, models.Edge{From: id, To: next})
			case white:
				visit(next)
			}
		}

		color[id] = black
	}

	for _, id := range roots(g) {
		if color[id] == white {
			visit(id)
		}
	}

	return backEdges
}

// roots orders the DFS entry points: start steps first, everything else after.
func roots(g *models.WorkflowGraph) []string {
	ordered := make([]string, 0, len(g.Order))

	for _, id := range g.Order {
		if g.Steps[id].Type == models.StepTypeStart {
			ordered = append(ordered, id)
		}
	}

	for _, id := range g.Order {
		if g.Steps[id].Type != models.StepTypeStart {
			ordered = append(ordered, id)
		}
	}

	return ordered
}

// computeLayers assigns each step its longest-path distance from a source of
// the graph obtained by dropping the back-edges. That graph is acyclic, so a
// Kahn traversal visits every step exactly once.
func computeLayers(g *models.WorkflowGraph) map[string]int {
	indegree := make(map[string]int, len(g.Steps))
	forward := make(map[string][]string, len(g.Steps))

	for _, id := range g.Order {
		for _, next := range g.Steps[id].Next {
			if g.IsBackEdge(id, next) {
				continue
			}

			forward[id] = append(forward[id], next)
			indegree[next]++
		}
	}

	layers := make(map[string]int, len(g.Steps))
	queue := make([]string, 0, len(g.Order))

	for _, id := range g.Order {
		if indegree[id] == 0 {
			queue = append(queue, id)
			layers[id] = 0
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, next := range forward[id] {
			if layers[id]+1 > layers[next] {
				layers[next] = layers[id] + 1
			}

			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return layers
}
