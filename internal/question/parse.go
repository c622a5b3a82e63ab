package question

import (
	"encoding/json"
	"strings"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/llm"
)

// authoredQuestion is the JSON object a question author is asked to return.
type authoredQuestion struct {
	Question      string   `json:"question"`
	Answers       []string `json:"answers"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Schema is the contract every extracted JSON object is checked against.
// Extra keys are ignored.
var Schema = &llm.Schema{
	Name:        "studybuddy-question",
	Description: "A four-option multiple-choice question with exactly one correct answer.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string", "minLength": 1},
			"answers": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "minLength": 1},
				"minItems":    4,
				"maxItems":    4,
				"uniqueItems": true,
			},
			"correct_answer": map[string]any{"type": "string", "minLength": 1},
			"explanation":    map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"question", "answers", "correct_answer", "explanation"},
	},
}

// extractJSON pulls the JSON object out of free text: a ```json fenced block
// wins, otherwise the span from the first '{' to the last '}'.
func extractJSON(text string) (string, bool) {
	if start := strings.Index(text, "```json"); start != -1 {
		body := text[start+len("```json"):]
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end]), true
		}
	}
	open := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if open == -1 || end <= open {
		return "", false
	}
	return text[open : end+1], true
}

// Parse turns raw author output into a Question. Any failure is an *domain.AuthoringError.
func Parse(text string) (domain.Question, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return domain.Question{}, &domain.AuthoringError{Reason: "no JSON object in output", Raw: text}
	}
	if err := llm.ValidateJSON(Schema, []byte(raw)); err != nil {
		return domain.Question{}, &domain.AuthoringError{Reason: "output does not match question schema", Raw: raw, Err: err}
	}

	var aq authoredQuestion
	if err := json.Unmarshal([]byte(raw), &aq); err != nil {
		return domain.Question{}, &domain.AuthoringError{Reason: "decode question", Raw: raw, Err: err}
	}
	return domain.Question{
		Text:          strings.TrimSpace(aq.Question),
		Answers:       aq.Answers,
		CorrectAnswer: aq.CorrectAnswer,
		Explanation:   strings.TrimSpace(aq.Explanation),
	}, nil
}

// outputSchema is the relaxed form sent to providers for structured output.
// Some providers reject length and uniqueness keywords, so those stay in Schema only.
var outputSchema = &llm.Schema{
	Name:        "studybuddy-question-output",
	Description: Schema.Description,
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":       map[string]any{"type": "string"},
			"answers":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"correct_answer": map[string]any{"type": "string"},
			"explanation":    map[string]any{"type": "string"},
		},
		"required":             []string{"question", "answers", "correct_answer", "explanation"},
		"additionalProperties": false,
	},
}
