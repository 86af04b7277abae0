package llm

import (
	"context"
	"testing"

	"github.com/codecritic/codecritic/internal/config"
)

func TestNewModelUnsupportedProvider(t *testing.T) {
	cfg := config.Config{LLMProvider: "gibberish", LLMModel: "x"}
	if _, err := NewModel(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestNewModelMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"openai without key", config.Config{LLMProvider: config.ProviderOpenAI, LLMModel: "gpt-4o-mini"}},
		{"anthropic without key", config.Config{LLMProvider: config.ProviderAnthropic, LLMModel: "claude-sonnet-4-5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewModel(context.Background(), tt.cfg, nil); err == nil {
				t.Error("expected error when API key missing")
			}
		})
	}
}

func TestNewModelOllama(t *testing.T) {
	cfg := config.Config{
		LLMProvider: config.ProviderOllama,
		LLMModel:    "llama3.2",
		OllamaHost:  "http://localhost:11434",
	}
	m, err := NewModel(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	if m.Model() != "llama3.2" {
		t.Errorf("expected model llama3.2, got %q", m.Model())
	}
}
