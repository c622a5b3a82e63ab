package llm

import (
	"errors"
	"testing"
)

var pairSchema = &Schema{
	Name: "test-pair",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 2,
				"maxItems": 2,
			},
		},
		"required": []string{"items"},
	},
}

func TestValidateJSON(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"items":["a","b"]}`, false},
		{"too few", `{"items":["a"]}`, true},
		{"missing field", `{}`, true},
		{"not json", `items: a, b`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJSON(pairSchema, []byte(tc.raw))
			if tc.wantErr {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateJSONNilSchema(t *testing.T) {
	if err := ValidateJSON(nil, []byte("anything")); err != nil {
		t.Fatalf("expected nil schema to pass, got %v", err)
	}
}
