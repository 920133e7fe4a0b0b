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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for language-model backed classifiers.
type Config struct {
	// ClassifierHost is the base URL for the chat completion API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ClassifierHost string

	// ClassifierModel is the model identifier used for sentiment classification.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ClassifierModel string

	// Token is the API token sent to the host. Local servers accept "none".
	Token string

	// Language is the default language code passed to classifiers when a
	// caller does not supply one.
	// Default: "es"
	Language string

	// ParseAttempts bounds how many times a malformed model response is
	// regenerated before the call fails.
	// Default: 3
	ParseAttempts int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithClassifierHost sets the classifier service host URL.
func WithClassifierHost(host string) ConfigOption {
	return func(c *Config) {
		c.ClassifierHost = host
	}
}

// WithClassifierModel sets the classifier model identifier.
func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

// WithToken sets the API token.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithLanguage sets the default language code.
func WithLanguage(lang string) ConfigOption {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithParseAttempts sets how many responses are requested before giving up
// on malformed output.
func WithParseAttempts(n int) ConfigOption {
	return func(c *Config) {
		c.ParseAttempts = n
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		ClassifierHost:  "http://localhost:11434/v1",
		ClassifierModel: "qwen2.5:3b",
		Token:           "none",
		Language:        DefaultLanguage,
		ParseAttempts:   3,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithClassifierHost("http://localhost:11434/v1"),
//       WithClassifierModel("gpt-4o-mini"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.ClassifierHost != "" && !strings.HasSuffix(c.ClassifierHost, "/v1") {
		c.ClassifierHost = strings.TrimSuffix(c.ClassifierHost, "/")
		c.ClassifierHost = c.ClassifierHost + "/v1"
	}
	if c.Token == "" {
		c.Token = "none"
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.ClassifierHost == "" {
		return errors.New("ai config: ClassifierHost is required")
	}
	if c.ClassifierModel == "" {
		return errors.New("ai config: ClassifierModel is required")
	}
	if c.ParseAttempts < 1 || c.ParseAttempts > 10 {
		return errors.New("ai config: ParseAttempts must be between 1 and 10")
	}
	return nil
}
