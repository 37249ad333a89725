// Package graph turns extracted step candidates into a validated WorkflowGraph.
package graph

import (
	"strconv"
	"strings"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

const op = "graph.Build"

// Build constructs a validated graph from candidates.
//
// Candidates without an id receive "step_<n>" where n is their 1-based input
// position. A repeated id names the same step: the first occurrence keeps its
// name, type and description and later occurrences only add next references.
// Repeated next references are collapsed and dangling references fail with a
// validation error. Cycles are accepted: the edges
// closing them are recorded in BackEdges. Layers holds the longest-path rank of
// every step over the graph without its back-edges.
func Build(id, title string, candidates []models.StepCandidate) (*models.WorkflowGraph, error) {
	if len(candidates) == 0 {
		return nil, failure.Validation(op, "no steps")
	}

	g := &models.WorkflowGraph{
		ID:    id,
		Title: title,
		Steps: make(map[string]*models.Step, len(candidates)),
		Order: make([]string, 0, len(candidates)),
	}

	ids := assignIDs(candidates)

	for i, candidate := range candidates {
		stepID := ids[i]

		if existing, ok := g.Steps[stepID]; ok {
			existing.Next = dedupe(append(existing.Next, candidate.Next...))

			continue
		}

		name := strings.TrimSpace(candidate.Name)
		if name == "" {
			name = stepID
		}

		g.Steps[stepID] = &models.Step{
			ID:          stepID,
			Name:        name,
			Description: strings.TrimSpace(candidate.Description),
			Type:        models.ParseStepType(candidate.Type, name),
			Next:        dedupe(candidate.Next),
		}
		g.Order = append(g.Order, stepID)
	}

	for _, step := range g.OrderedSteps() {
		if !step.Type.IsValid() {
			return nil, failure.New(op, failure.KindInternal, "step %q has unknown type %q", step.ID, step.Type)
		}

		for _, next := range step.Next {
			if _, ok := g.Steps[next]; !ok {
				return nil, failure.Validation(op, "step %q references unknown step %q", step.ID, next)
			}
		}
	}

	g.BackEdges = findBackEdges(g)
	g.Layers = computeLayers(g)

	return g, nil
}

// assignIDs returns the final id of every candidate, in input order.
func assignIDs(candidates []models.StepCandidate) []string {
	ids := make([]string, len(candidates))
	taken := make(map[string]bool, len(candidates))

	for i, candidate := range candidates {
		stepID := strings.TrimSpace(candidate.ID)
		if stepID == "" {
			continue
		}

		taken[stepID] = true
		ids[i] = stepID
	}

	for i := range candidates {
		if ids[i] != "" {
			continue
		}

		base := "step_" + strconv.Itoa(i+1)
		stepID := base

		for suffix := 2; taken[stepID]; suffix++ {
			stepID = base + "_" + strconv.Itoa(suffix)
		}

		taken[stepID] = true
		ids[i] = stepID
	}

	return ids
}

func dedupe(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))

	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] {
			continue
		}

		seen[ref] = true
		out = append(out, ref)
	}

	return out
}
