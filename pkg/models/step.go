// Package models defines the core domain models for the workflow pipeline.
package models

import (
	"encoding/json"
	"strings"
)

// StepType is the closed set of node kinds a workflow graph can hold.
type StepType string

const (
	StepTypeStart   StepType = "start"
	StepTypeEnd     StepType = "end"
	StepTypeTask    StepType = "task"
	StepTypeGateway StepType = "gateway"
)

// IsValid reports whether t is one of the known step types.
func (t StepType) IsValid() bool {
	switch t {
	case StepTypeStart, StepTypeEnd, StepTypeTask, StepTypeGateway:
		return true
	default:
		return false
	}
}

// ParseStepType maps the vocabulary produced by step extraction onto StepType.
// "decision" is a gateway, an "event" is a start event when its name mentions
// "start" and an end event otherwise. Anything unknown becomes a task.
func ParseStepType(raw, name string) StepType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "start", "start_event", "startevent":
		return StepTypeStart
	case "end", "end_event", "endevent":
		return StepTypeEnd
	case "gateway", "decision", "exclusive_gateway", "parallel_gateway":
		return StepTypeGateway
	case "event":
		if strings.Contains(strings.ToLower(name), "start") {
			return StepTypeStart
		}

		return StepTypeEnd
	default:
		return StepTypeTask
	}
}

// StepCandidate is one raw step as delivered by the extraction collaborator.
// Nothing about it is trusted until the graph builder has validated it.
type StepCandidate struct {
	ID          string   `json:"step_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"step_type,omitempty"`
	Next        []string `json:"next_steps,omitempty"`
}

// UnmarshalJSON accepts both the extractor field names (step_id, step_type,
// next_steps) and the short ones (id, type, next).
func (c *StepCandidate) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string   `json:"id"`
		StepID      string   `json:"step_id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Type        string   `json:"type"`
		StepType    string   `json:"step_type"`
		Next        []string `json:"next"`
		NextSteps   []string `json:"next_steps"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	c.ID = firstNonEmpty(raw.StepID, raw.ID)
	c.Name = raw.Name
	c.Description = raw.Description
	c.Type = firstNonEmpty(raw.StepType, raw.Type)

	c.Next = raw.NextSteps
	if len(c.Next) == 0 {
		c.Next = raw.Next
	}

	return nil
}

// Step is a validated node of a WorkflowGraph.
type Step struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        StepType `json:"type"`
	Next        []string `json:"next"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
