package comprehend

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/poiesic/reviewpipe/ai"
)

// maxTextBytes is the DetectSentiment input limit.
const maxTextBytes = 5000

// API is the subset of the Comprehend client used by Classifier.
type API interface {
	DetectSentiment(ctx context.Context, params *comprehend.DetectSentimentInput, optFns ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error)
}

// Classifier implements ai.TextClassifier on AWS Comprehend.
type Classifier struct {
	client   API
	language string
	logger   *slog.Logger
}

// NewClassifier wraps a Comprehend client. language is used when Classify is
// called without one.
func NewClassifier(client API, language string) ai.TextClassifier {
	return newClassifier(client, language)
}

func newClassifier(client API, language string) *Classifier {
	if language == "" {
		language = ai.DefaultLanguage
	}
	return &Classifier{
		client:   client,
		language: language,
		logger:   slog.Default().With("component", "comprehend-classifier"),
	}
}

// NewFromConfig builds a classifier from an AWS configuration.
func NewFromConfig(cfg aws.Config, language string) ai.TextClassifier {
	return newClassifier(comprehend.NewFromConfig(cfg), language)
}

// Classify detects the dominant sentiment of text.
func (c *Classifier) Classify(ctx context.Context, text, language string) (ai.Label, error) {
	if language == "" {
		language = c.language
	}

	out, err := c.client.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
		Text:         aws.String(truncate(text, maxTextBytes)),
		LanguageCode: types.LanguageCode(language),
	})
	if err != nil {
		c.logger.Error("detect sentiment failed", "language", language, "err", err)
		return "", fmt.Errorf("%w: %v", ai.ErrClassification, err)
	}

	label, err := ai.ParseLabel(string(out.Sentiment))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrClassification, err)
	}
	return label, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
