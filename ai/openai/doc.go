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


// Package openai provides a sentiment classifier on OpenAI-compatible APIs.
//
// The classifier uses the langchaingo library to talk to OpenAI or an
// OpenAI-compatible service (Ollama, LocalAI, vLLM). The model is asked for a
// JSON object naming one of the ai.Labels; malformed answers are regenerated
// up to Config.ParseAttempts times.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithClassifierHost("http://localhost:11434"),  // /v1 added automatically
//	    ai.WithClassifierModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	label, err := provider.Classifier().Classify(ctx, "La entrega llegó tarde", "es")
package openai
