package extraction

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const parseOp = "extraction.ParseSteps"

// stepsSchema is the shape a model answer must have once the array is cut out of it.
const stepsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "properties": {
      "step_id":     {"type": "string"},
      "id":          {"type": "string"},
      "name":        {"type": "string"},
      "description": {"type": "string"},
      "step_type":   {"type": "string"},
      "type":        {"type": "string"},
      "next_steps":  {"type": "array", "items": {"type": "string"}},
      "next":        {"type": "array", "items": {"type": "string"}}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(stepsSchema)

// ParseSteps extracts the first JSON array from a model response and decodes
// it into step candidates. Prose around the array is ignored, including
// bracketed text that does not parse as JSON.
func ParseSteps(response string) ([]models.StepCandidate, error) {
	raw, err := firstArray(response)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, failure.Wrap(parseOp, failure.KindInternal, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return nil, failure.New(parseOp, failure.KindExternalService,
			"model response does not match the step schema: %s", strings.Join(messages, "; "))
	}

	var candidates []models.StepCandidate

	err = json.NewDecoder(bytes.NewReader(raw)).Decode(&candidates)
	if err != nil {
		return nil, failure.Wrap(parseOp, failure.KindExternalService, err)
	}

	return candidates, nil
}

func firstArray(response string) (json.RawMessage, error) {
	var last error

	for offset := 0; offset < len(response); {
		start := strings.IndexByte(response[offset:], '[')
		if start < 0 {
			break
		}

		offset += start

		var raw json.RawMessage

		err := json.NewDecoder(strings.NewReader(response[offset:])).Decode(&raw)
		if err == nil {
			return raw, nil
		}

		last = err
		offset++
	}

	if last != nil {
		return nil, &failure.Error{
			Op:      parseOp,
			Kind:    failure.KindExternalService,
			Message: "model response holds a malformed step array",
			Err:     last,
		}
	}

	return nil, failure.New(parseOp, failure.KindExternalService, "model response contains no step array")
}
