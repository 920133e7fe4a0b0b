package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/poiesic/reviewpipe/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Classifier implements ai.TextClassifier using OpenAI-compatible chat APIs.
type Classifier struct {
	client        llms.Model
	language      string
	parseAttempts int
	logger        *slog.Logger
}

// verdict is the JSON object the model is asked to produce.
type verdict struct {
	Sentiment string `json:"sentiment"`
}

// newClassifier is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newClassifier(config *ai.Config) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}

	return newClassifierWithModel(client, config), nil
}

func newClassifierWithModel(client llms.Model, config *ai.Config) *Classifier {
	return &Classifier{
		client:        client,
		language:      config.Language,
		parseAttempts: config.ParseAttempts,
		logger:        slog.Default().With("component", "openai-classifier"),
	}
}

// NewClassifier creates a new sentiment classifier using the provided configuration.
//
// Returns ai.TextClassifier interface to enforce abstraction.
func NewClassifier(config *ai.Config) (ai.TextClassifier, error) {
	return newClassifier(config)
}

// Classify asks the model for the sentiment of text.
// Transport errors fail immediately; unparseable answers are regenerated.
func (c *Classifier) Classify(ctx context.Context, text, language string) (ai.Label, error) {
	if language == "" {
		language = c.language
	}
	text = scrubString(text)

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(language))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	var lastErr error
	for attempt := 0; attempt < c.parseAttempts; attempt++ {
		response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			c.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return "", fmt.Errorf("%w: %v", ai.ErrClassification, err)
		}

		if len(response.Choices) < 1 {
			lastErr = fmt.Errorf("no choices returned from model")
			c.logger.Warn("empty classifier response", "attempt", attempt+1)
			continue
		}

		responseText := repairJSON(stripFences(response.Choices[0].Content))

		label, err := parseVerdict(responseText)
		if err != nil {
			lastErr = err
			c.logger.Warn("error parsing classifier response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		c.logger.Debug("classified review", "label", label, "language", language)
		return label, nil
	}

	c.logger.Error("failed to parse classifier response after retries", "err", lastErr)
	return "", fmt.Errorf("%w: %v", ai.ErrClassification, lastErr)
}

func parseVerdict(s string) (ai.Label, error) {
	var v verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		// Some models answer with the bare label.
		if label, labelErr := ai.ParseLabel(s); labelErr == nil {
			return label, nil
		}
		return "", err
	}
	return ai.ParseLabel(v.Sentiment)
}
