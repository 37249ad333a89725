package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/sashabaranov/go-openai"
)

const extractOp = "extraction.OpenAI"

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.2
	DefaultTimeout     = 2 * time.Minute
)

const systemPrompt = `You are an expert business process analyst. Your task is to analyze text and extract workflow steps in a structured format.

For each workflow step, identify:
1. Step name (concise title)
2. Description (what happens in this step)
3. Step type (task, decision, event, or gateway)
4. Next steps (which steps follow this one)

Return the workflow as a JSON array of steps.`

const userPromptTemplate = `Analyze the following text and extract the workflow steps:

%s

%s

Return a JSON array of workflow steps with this structure:
[
  {
    "step_id": "step_1",
    "name": "Step Name",
    "description": "What happens in this step",
    "step_type": "task",
    "next_steps": ["step_2"]
  }
]`

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// OpenAIExtractor asks a chat completion model for the steps of a transcript.
type OpenAIExtractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      *slog.Logger
}

func NewOpenAIExtractor(cfg OpenAIConfig, logger *slog.Logger) *OpenAIExtractor {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	extractor := &OpenAIExtractor{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger.With("module", "extraction"),
	}

	if extractor.model == "" {
		extractor.model = DefaultModel
	}

	if extractor.maxTokens <= 0 {
		extractor.maxTokens = DefaultMaxTokens
	}

	if extractor.temperature <= 0 {
		extractor.temperature = DefaultTemperature
	}

	if extractor.timeout <= 0 {
		extractor.timeout = DefaultTimeout
	}

	return extractor
}

// Extract sends text to the model and parses the step array out of its answer.
// Transport failures, timeouts and unusable answers are external service errors.
func (e *OpenAIExtractor) Extract(ctx context.Context, text, hint string) ([]models.StepCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, failure.Validation(extractOp, "transcript text is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if hint != "" {
		hint = "Additional context: " + hint
	}

	e.logger.DebugContext(ctx, "Requesting step extraction", "model", e.model, "text_length", len(text))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, text, hint)},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, serviceError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, failure.New(extractOp, failure.KindExternalService, "no choices returned from model")
	}

	candidates, err := ParseSteps(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Extracted workflow steps", "count", len(candidates))

	return candidates, nil
}

func serviceError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &failure.Error{
			Op:      extractOp,
			Kind:    failure.KindExternalService,
			Message: fmt.Sprintf("model endpoint returned status %d", apiErr.HTTPStatusCode),
			Err:     err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &failure.Error{Op: extractOp, Kind: failure.KindExternalService, Message: "step extraction timed out", Err: err}
	}

	return &failure.Error{Op: extractOp, Kind: failure.KindExternalService, Message: "step extraction failed", Err: err}
}
