// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for the text classification services used
// to enrich review records.
//
// The package defines the TextClassifier interface, the closed set of
// sentiment labels and the configuration for language-model backed
// classifiers. Enrichment depends only on these abstractions; concrete
// backends live in sub-packages:
//
//   - ai/openai: classification with an OpenAI-compatible chat model
//   - ai/comprehend: classification with AWS Comprehend DetectSentiment
//   - ai/cache: a caching decorator with an optional Redis store
//   - ai/mock: test doubles for unit testing without external services
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, comprehend.NewClassifier) return
// INTERFACE types to keep callers decoupled from a particular backend.
// Test constructors (mock.NewMockClassifier) return CONCRETE types so tests
// can inject behavior and inspect call counts.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithClassifierModel("gpt-4o-mini")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	label, err := provider.Classifier().Classify(ctx, "Me encantó el producto", "es")
//	if errors.Is(err, ai.ErrClassification) {
//	    // backend failure
//	}
package ai
