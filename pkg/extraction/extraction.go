// Package extraction turns free text into step candidates through an external
// language model.
package extraction

import (
	"context"

	"github.com/PFerreria/Concilium/pkg/models"
)

// Extractor derives workflow step candidates from a transcript. hint is optional
// extra context passed along with the text.
type Extractor interface {
	Extract(ctx context.Context, text, hint string) ([]models.StepCandidate, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text, hint string) ([]models.StepCandidate, error)

func (f ExtractorFunc) Extract(ctx context.Context, text, hint string) ([]models.StepCandidate, error) {
	return f(ctx, text, hint)
}
