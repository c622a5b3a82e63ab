package llm

import (
	"context"
	"testing"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		input    string
		models   map[string]string
		expected string
	}{
		{"gemini-flash", geminiModels, "gemini-2.0-flash"},
		{"gemini-2.5-pro", geminiModels, "gemini-2.5-pro"},
		{"claude-haiku", anthropicModels, "claude-haiku-4-5-20251001"},
		{"gpt-4o-mini", openaiModels, "gpt-4o-mini"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, tt.models); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":   map[string]any{"type": "string"},
			"answers":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"difficulty": map[string]any{"type": "string", "enum": []string{"easy", "medium", "hard"}},
		},
		"required": []string{"question", "answers"},
	})

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	if len(schema.Properties) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(schema.Properties))
	}
	if schema.Properties["answers"].Items.Type != "STRING" {
		t.Fatalf("expected STRING items, got %s", schema.Properties["answers"].Items.Type)
	}
	if len(schema.Properties["difficulty"].Enum) != 3 {
		t.Fatalf("expected 3 enum values, got %d", len(schema.Properties["difficulty"].Enum))
	}
	if len(schema.Required) != 2 {
		t.Fatalf("expected 2 required fields, got %d", len(schema.Required))
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Provider: "gemini"}).Validate(); err == nil {
		t.Fatal("expected missing key error")
	}
	if err := (Config{Provider: "nope", APIKey: "k"}).Validate(); err == nil {
		t.Fatal("expected unknown provider error")
	}
	if err := (Config{Provider: "mock"}).Validate(); err != nil {
		t.Fatalf("mock needs no key: %v", err)
	}
}

func TestNewProviderMock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected mock model, got %s", p.ModelID())
	}
}

func TestPurposeRoundTrip(t *testing.T) {
	ctx := WithPurpose(context.Background(), "question-author")
	if got := PurposeFrom(ctx); got != "question-author" {
		t.Fatalf("expected purpose, got %q", got)
	}
	if got := PurposeFrom(context.Background()); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
