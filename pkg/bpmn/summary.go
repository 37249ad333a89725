package bpmn

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/PFerreria/Concilium/pkg/failure"
)

// Summary counts the BPMN elements of a document.
type Summary struct {
	ProcessName       string `json:"process_name"`
	StartEvents       int    `json:"start_events"`
	EndEvents         int    `json:"end_events"`
	Tasks             int    `json:"tasks"`
	ExclusiveGateways int    `json:"exclusive_gateways"`
	SequenceFlows     int    `json:"sequence_flows"`
}

// Parse reads a BPMN document and summarises its process.
func Parse(data []byte) (*Summary, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	summary := &Summary{}
	sawDefinitions := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, failure.Wrap("bpmn.Parse", failure.KindValidation, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "definitions":
			sawDefinitions = true
		case "process":
			for _, attr := range start.Attr {
				if attr.Name.Local == "name" {
					summary.ProcessName = attr.Value
				}
			}
		case "startEvent":
			summary.StartEvents++
		case "endEvent":
			summary.EndEvents++
		case "task":
			summary.Tasks++
		case "exclusiveGateway":
			summary.ExclusiveGateways++
		case "sequenceFlow":
			summary.SequenceFlows++
		}
	}

	if !sawDefinitions {
		return nil, failure.Validation("bpmn.Parse", "document has no definitions element")
	}

	return summary, nil
}
