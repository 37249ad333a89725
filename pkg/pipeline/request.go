// Package pipeline runs jobs through the build, export and render stages.
package pipeline

import (
	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/go-playground/validator/v10"
)

// SubmitRequest is what a client hands over to create a job: either step
// candidates or a transcript to extract them from.
type SubmitRequest struct {
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description,omitempty" validate:"max=2000"`
	Steps       []models.StepCandidate `json:"steps,omitempty" validate:"max=500"`
	Transcript  *TranscriptRequest     `json:"transcript,omitempty"`
}

// TranscriptRequest carries a transcript produced upstream.
type TranscriptRequest struct {
	Text            string  `json:"text" validate:"required"`
	Language        string  `json:"language,omitempty" validate:"omitempty,max=16"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" validate:"gte=0"`
}

// Validate checks field constraints and that the request carries some input.
func (r SubmitRequest) Validate(v *validator.Validate) error {
	const op = "pipeline.Submit"

	err := v.Struct(r)
	if err != nil {
		return &failure.Error{Op: op, Kind: failure.KindValidation, Message: "invalid request", Err: err}
	}

	if len(r.Steps) == 0 && r.Transcript == nil {
		return failure.Validation(op, "either steps or a transcript is required")
	}

	return nil
}

func (r SubmitRequest) input() models.JobInput {
	input := models.JobInput{Steps: r.Steps}

	if len(r.Steps) == 0 && r.Transcript != nil {
		input.Transcript = &models.Transcript{
			Text:            r.Transcript.Text,
			Language:        r.Transcript.Language,
			DurationSeconds: r.Transcript.DurationSeconds,
		}
	}

	return input
}
