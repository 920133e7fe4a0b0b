// Package cache memoizes sentiment classifications.
//
// Classifier wraps any ai.TextClassifier and stores labels in a Store keyed
// by a BLAKE2b fingerprint of language and text. Re-running a batch, or
// running the metrics variant after an index run, then skips the backend for
// reviews it has already seen. Concurrent requests for the same text share
// one backend call. Store failures are logged and never fail a
// classification.
package cache
