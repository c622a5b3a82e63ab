package llm

import "context"

// Provider is the text-generation backend used to author questions.
type Provider interface {
	// Generate sends a prompt and returns the model output. When the request
	// carries a Schema the provider asks for schema-constrained JSON and
	// validates it before returning.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a JSON Schema the output should conform to.
// Name doubles as the compiled-schema cache key, so it must be unique per definition.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the model output.
type Response struct {
	// Text is the raw output. Free text when no schema was requested, a JSON document otherwise.
	Text       string
	Usage      Usage
	Model      string
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// UserPrompt builds a single-turn request.
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}
