// Package comprehend classifies review sentiment with AWS Comprehend.
//
// The classifier calls DetectSentiment with the record's language code and
// maps Comprehend's sentiment names onto ai.Labels. Input longer than the
// service limit is truncated on a rune boundary.
package comprehend
