// Package bpmn exports a WorkflowGraph as a BPMN 2.0 process document.
package bpmn

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
)

const (
	Namespace       = "http://www.omg.org/spec/BPMN/20100524/MODEL"
	TargetNamespace = "http://concilium.ai/workflows"
	ContentType     = "application/xml"
	FileExtension   = "bpmn"
)

const op = "bpmn.Export"

type definitions struct {
	XMLName         xml.Name `xml:"definitions"`
	Xmlns           string   `xml:"xmlns,attr"`
	ID              string   `xml:"id,attr"`
	TargetNamespace string   `xml:"targetNamespace,attr"`
	Process         process  `xml:"process"`
}

type process struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr,omitempty"`
	IsExecutable  bool   `xml:"isExecutable,attr"`
	Documentation string `xml:"documentation,omitempty"`
	Nodes         []flowNode
	Flows         []sequenceFlow `xml:"sequenceFlow"`
}

type flowNode struct {
	XMLName       xml.Name
	ID            string   `xml:"id,attr"`
	Name          string   `xml:"name,attr,omitempty"`
	Documentation string   `xml:"documentation,omitempty"`
	Incoming      []string `xml:"incoming"`
	Outgoing      []string `xml:"outgoing"`
}

type sequenceFlow struct {
	ID        string `xml:"id,attr"`
	SourceRef string `xml:"sourceRef,attr"`
	TargetRef string `xml:"targetRef,attr"`
}

// ElementName returns the BPMN element used for a step type.
func ElementName(t models.StepType) string {
	switch t {
	case models.StepTypeStart:
		return "startEvent"
	case models.StepTypeEnd:
		return "endEvent"
	case models.StepTypeGateway:
		return "exclusiveGateway"
	case models.StepTypeTask:
		return "task"
	default:
		return "task"
	}
}

// Export serialises g into a BPMN 2.0 document. Element ids are derived from the
// step ids only, and no timestamp is written, so exporting the same graph twice
// yields identical bytes. Back-edges are exported as ordinary sequence flows.
func Export(g *models.WorkflowGraph) ([]byte, error) {
	if g == nil || len(g.Steps) == 0 {
		return nil, failure.New(op, failure.KindExport, "graph has no steps")
	}

	if g.CountByType(models.StepTypeStart) == 0 {
		return nil, failure.New(op, failure.KindExport, "graph has no start step")
	}

	if g.CountByType(models.StepTypeEnd) == 0 {
		return nil, failure.New(op, failure.KindExport, "graph has no end step")
	}

	ids := elementIDs(g)
	flows := flowsOf(g, ids)

	incoming := make(map[string][]string)
	outgoing := make(map[string][]string)

	for _, f := range flows {
		outgoing[f.SourceRef] = append(outgoing[f.SourceRef], f.ID)
		incoming[f.TargetRef] = append(incoming[f.TargetRef], f.ID)
	}

	doc := definitions{
		Xmlns:           Namespace,
		ID:              "definitions_" + sanitize(g.ID),
		TargetNamespace: TargetNamespace,
		Process: process{
			ID:            "process_" + sanitize(g.ID),
			Name:          g.Title,
			IsExecutable:  false,
			Documentation: g.Description,
			Flows:         flows,
		},
	}

	for _, step := range g.OrderedSteps() {
		id := ids[step.ID]
		doc.Process.Nodes = append(doc.Process.Nodes, flowNode{
			XMLName:       xml.Name{Local: ElementName(step.Type)},
			ID:            id,
			Name:          step.Name,
			Documentation: step.Description,
			Incoming:      incoming[id],
			Outgoing:      outgoing[id],
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, failure.Wrap(op, failure.KindInternal, err)
	}

	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')

	err = checkWellFormed(out)
	if err != nil {
		return nil, &failure.Error{Op: op, Kind: failure.KindInternal, Message: "exporter produced malformed XML", Err: err}
	}

	return out, nil
}

func flowsOf(g *models.WorkflowGraph, ids map[string]string) []sequenceFlow {
	flows := make([]sequenceFlow, 0)

	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		used[id] = true
	}

	for _, e := range g.Edges() {
		src, dst := ids[e.From], ids[e.To]
		id := uniqueID("flow_"+src+"_to_"+dst, used)

		flows = append(flows, sequenceFlow{ID: id, SourceRef: src, TargetRef: dst})
	}

	return flows
}

// elementIDs maps every step id onto a unique XML NCName.
func elementIDs(g *models.WorkflowGraph) map[string]string {
	ids := make(map[string]string, len(g.Steps))
	used := make(map[string]bool, len(g.Steps))

	for _, id := range g.Order {
		ids[id] = uniqueID(sanitize(id), used)
	}

	return ids
}

func uniqueID(candidate string, used map[string]bool) string {
	id := candidate
	for n := 2; used[id]; n++ {
		id = candidate + "_" + strconv.Itoa(n)
	}

	used[id] = true

	return id
}

// sanitize turns s into a valid NCName: letters, digits, '-', '_' and '.',
// not starting with a digit, '-' or '.'.
func sanitize(s string) string {
	var b strings.Builder

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	out := b.String()
	if out == "" {
		return "step_"
	}

	first := []rune(out)[0]
	if !unicode.IsLetter(first) && first != '_' {
		out = "step_" + out
	}

	return out
}

func checkWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	for {
		_, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}
