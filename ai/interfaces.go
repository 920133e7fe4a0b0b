package ai

import "context"

// TextClassifier assigns a sentiment label to a piece of text.
// Implementations must be thread-safe for concurrent use.
type TextClassifier interface {
	// Classify returns the sentiment of text written in the given language
	// (an ISO 639-1 code such as "es"). Upstream faults are reported wrapped
	// in ErrClassification.
	Classify(ctx context.Context, text, language string) (Label, error)
}

// Provider owns a classifier together with the resources behind it.
type Provider interface {
	// Classifier returns the classification service.
	// The returned TextClassifier is safe for concurrent use.
	Classifier() TextClassifier

	// Close releases resources held by the provider.
	// After Close is called, the provider and its classifier should not be used.
	Close() error
}
