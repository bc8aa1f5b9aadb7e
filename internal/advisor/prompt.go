package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

const systemPrompt = "You are a personal finance advisor. Reply with a JSON object of the form " +
	`{"suggestions": ["..."]} and nothing else.`

var promptTemplate = template.Must(template.New("advisor").Parse(
	`You are a personal finance advisor. Analyze the user's income, expenses, and financial goals to provide personalized budget adjustment suggestions.
The financial figures are in {{.CurrencyCode}}.

Income: {{.Income}}
Expenses:
{{- range .Expenses}}
  - Category: {{.Category}}, Amount: {{.Amount}}
{{- end}}
Financial Goals: {{.FinancialGoals}}

Based on this information, provide a list of actionable suggestions to optimize their budget. Focus on areas where they can reduce spending or allocate funds more effectively.
Respond with JSON: {"suggestions": ["..."]}
Suggestions:`))

// RenderPrompt renders the user prompt sent to the model.
func RenderPrompt(req Request) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, req); err != nil {
		return "", fmt.Errorf("render advisor prompt: %w", err)
	}
	return b.String(), nil
}

// ParseSuggestions decodes the model output. It accepts the JSON object
// {"suggestions": [...]} optionally wrapped in a markdown code fence. Blank
// suggestions are dropped; an empty result is malformed.
func ParseSuggestions(raw string) (Response, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return Response{}, fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	var out Response
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	kept := out.Suggestions[:0]
	for _, sug := range out.Suggestions {
		if sug = strings.TrimSpace(sug); sug != "" {
			kept = append(kept, sug)
		}
	}
	if len(kept) == 0 {
		return Response{}, fmt.Errorf("%w: no suggestions", ErrMalformedResponse)
	}
	return Response{Suggestions: kept}, nil
}
