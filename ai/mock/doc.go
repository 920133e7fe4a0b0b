// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.TextClassifier and
// ai.Provider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	classifier := mock.NewMockClassifier()
//	label, err := classifier.Classify(ctx, "muy bueno", "es")
//
//	// Custom behavior injection
//	classifier := mock.NewMockClassifier().
//	    WithClassifyFunc(func(ctx context.Context, text, language string) (ai.Label, error) {
//	        return ai.LabelMixed, nil
//	    })
//
//	// Check call counts
//	count := classifier.CallCount()
//
// # Default Behavior
//
// MockClassifier derives a label from a hash of the text, so the same text
// always gets the same label. Texts registered with WithLabel return that
// label instead.
package mock
