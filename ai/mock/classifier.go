package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/poiesic/reviewpipe/ai"
)

// MockClassifier is a test double for ai.TextClassifier.
// It is safe for concurrent use.
type MockClassifier struct {
	// ClassifyFunc is called by Classify if set.
	// If nil, uses the label table and then the text hash.
	ClassifyFunc func(ctx context.Context, text, language string) (ai.Label, error)

	mu        sync.Mutex
	labels    map[string]ai.Label
	callCount int
	texts     []string
}

// NewMockClassifier creates a mock classifier with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{labels: make(map[string]ai.Label)}
}

// WithClassifyFunc installs custom behavior and returns the classifier.
func (m *MockClassifier) WithClassifyFunc(fn func(ctx context.Context, text, language string) (ai.Label, error)) *MockClassifier {
	m.ClassifyFunc = fn
	return m
}

// WithLabel makes Classify return label for text.
func (m *MockClassifier) WithLabel(text string, label ai.Label) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[text] = label
	return m
}

// Classify returns a deterministic label for text.
func (m *MockClassifier) Classify(ctx context.Context, text, language string) (ai.Label, error) {
	m.mu.Lock()
	m.callCount++
	m.texts = append(m.texts, text)
	label, known := m.labels[text]
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, language)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if known {
		return label, nil
	}
	return LabelFor(text), nil
}

// CallCount returns the number of times Classify was called.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Texts returns the texts classified so far, in call order.
func (m *MockClassifier) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call history and custom behavior.
func (m *MockClassifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.texts = nil
	m.labels = make(map[string]ai.Label)
	m.ClassifyFunc = nil
}

// LabelFor returns the default label the mock assigns to text.
// It uses an FNV hash so the same text always maps to the same label.
func LabelFor(text string) ai.Label {
	h := fnv.New32a()
	h.Write([]byte(text))
	return ai.Labels[h.Sum32()%uint32(len(ai.Labels))]
}
