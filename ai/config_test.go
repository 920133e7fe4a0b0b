package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	assert.Equal(t, "qwen2.5:3b", cfg.ClassifierModel)
	assert.Equal(t, "none", cfg.Token)
	assert.Equal(t, "es", cfg.Language)
	assert.Equal(t, 3, cfg.ParseAttempts)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithClassifierHost("http://custom:8080/v1"),
			WithClassifierModel("gpt-4o-mini"),
			WithToken("sk-test"),
			WithLanguage("en"),
			WithParseAttempts(5),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.ClassifierHost)
		assert.Equal(t, "gpt-4o-mini", cfg.ClassifierModel)
		assert.Equal(t, "sk-test", cfg.Token)
		assert.Equal(t, "en", cfg.Language)
		assert.Equal(t, 5, cfg.ParseAttempts)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ClassifierHost: tt.host}
			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.ClassifierHost)
			assert.Equal(t, "none", cfg.Token)
			assert.Equal(t, DefaultLanguage, cfg.Language)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{
			ClassifierHost:  "http://localhost:11434",
			ClassifierModel: "qwen2.5:3b",
			ParseAttempts:   3,
		}

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := &Config{ClassifierModel: "qwen2.5:3b", ParseAttempts: 3}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ClassifierHost")
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := &Config{ClassifierHost: "http://localhost:11434/v1", ParseAttempts: 3}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ClassifierModel")
	})

	t.Run("parse attempts out of range", func(t *testing.T) {
		for _, n := range []int{0, 11} {
			cfg := NewConfig(WithParseAttempts(n))

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ParseAttempts")
		}
	})
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    Label
		wantErr bool
	}{
		{"POSITIVE", LabelPositive, false},
		{"negative", LabelNegative, false},
		{" Neutral ", LabelNeutral, false},
		{"mixed", LabelMixed, false},
		{"happy", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLabel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLabel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
