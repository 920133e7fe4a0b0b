package ai

import (
	"fmt"
	"strings"
)

// DefaultLanguage is the language code assumed for review text.
const DefaultLanguage = "es"

// Label is a sentiment classification result.
type Label string

// Sentiment labels. The names match the values stored in indexed documents.
const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
	LabelNeutral  Label = "NEUTRAL"
	LabelMixed    Label = "MIXED"
)

// Labels lists every valid label.
var Labels = []Label{LabelPositive, LabelNegative, LabelNeutral, LabelMixed}

// String returns the label text.
func (l Label) String() string {
	return string(l)
}

// Valid reports whether l is one of Labels.
func (l Label) Valid() bool {
	switch l {
	case LabelPositive, LabelNegative, LabelNeutral, LabelMixed:
		return true
	}
	return false
}

// ParseLabel resolves a label case-insensitively.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
	return l, nil
}
