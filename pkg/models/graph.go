package models

// Edge is a directed connection between two steps.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WorkflowGraph is the directed process description built for one job.
// It is immutable once the builder returns it.
type WorkflowGraph struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Steps       map[string]*Step `json:"steps"`

	// Order keeps the input order of the steps so that every artifact derived
	// from the graph is deterministic.
	Order []string `json:"order"`

	// BackEdges are the edges closing a cycle, found by depth-first search.
	BackEdges []Edge `json:"back_edges,omitempty"`

	// Layers is the longest-path rank of each step. Rendering hint only.
	Layers map[string]int `json:"layers,omitempty"`
}

// OrderedSteps returns the steps in input order.
func (g *WorkflowGraph) OrderedSteps() []*Step {
	steps := make([]*Step, 0, len(g.Order))
	for _, id := range g.Order {
		if step, ok := g.Steps[id]; ok {
			steps = append(steps, step)
		}
	}

	return steps
}

// Edges returns every edge of the graph in input order.
func (g *WorkflowGraph) Edges() []Edge {
	var edges []Edge

	for _, step := range g.OrderedSteps() {
		for _, next := range step.Next {
			edges = append(edges, Edge{From: step.ID, To: next})
		}
	}

	return edges
}

// IsBackEdge reports whether the edge from -> to closes a cycle.
func (g *WorkflowGraph) IsBackEdge(from, to string) bool {
	for _, e := range g.BackEdges {
		if e.From == from && e.To == to {
			return true
		}
	}

	return false
}

// HasCycle reports whether any back-edge was detected.
func (g *WorkflowGraph) HasCycle() bool {
	return len(g.BackEdges) > 0
}

// CountByType returns how many steps of type t the graph holds.
func (g *WorkflowGraph) CountByType(t StepType) int {
	count := 0

	for _, step := range g.Steps {
		if step.Type == t {
			count++
		}
	}

	return count
}

// LayerCount is the number of distinct layers, at least one for a non-empty graph.
func (g *WorkflowGraph) LayerCount() int {
	highest := -1
	for _, layer := range g.Layers {
		if layer > highest {
			highest = layer
		}
	}

	return highest + 1
}

// StepsInLayer returns the steps assigned to layer, in input order.
func (g *WorkflowGraph) StepsInLayer(layer int) []*Step {
	var steps []*Step

	for _, step := range g.OrderedSteps() {
		if g.Layers[step.ID] == layer {
			steps = append(steps, step)
		}
	}

	return steps
}
