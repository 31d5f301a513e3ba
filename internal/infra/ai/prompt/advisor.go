package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior ELD (electronic logging device) compliance analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- advice is a short action plan a fleet dispatcher can follow in the compliance portal; keep it under 120 words.
- steps is an ordered array of concrete portal actions. Keep items concise.
- Never advise editing driving time records directly; flag those cases for a certified log review instead.

Schema (example with empty values):
{
  "error_kind": "<string>",
  "advice": "<string>",
  "steps": ["<string>"],
  "needs_certified_review": false
}`
}

// GetUserPrompt builds a compact user message around one detected error.
func GetUserPrompt(e *detecterrors.DetectedError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Advise on this logging error and respond with the JSON per schema.\n")
	fmt.Fprintf(&b, "Kind: %s\n", e.Kind)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	fmt.Fprintf(&b, "Severity: %s\n", e.Severity)
	if e.DriverName != "" {
		fmt.Fprintf(&b, "Driver: %s\n", e.DriverName)
	}
	if e.LogID != "" {
		fmt.Fprintf(&b, "Log: %s\n", e.LogID)
	}
	return b.String()
}

// Suggestion matches the schema used by the system prompt.
type Suggestion struct {
	ErrorKind            string   `json:"error_kind"`
	Advice               string   `json:"advice"`
	Steps                []string `json:"steps"`
	NeedsCertifiedReview bool     `json:"needs_certified_review"`
}

// ParseSuggestion flattens the model's JSON into one advice string. The
// raw content is returned untouched when it is not valid JSON, so a
// partially-conforming answer still reaches the dispatcher.
func ParseSuggestion(content string) string {
	var s Suggestion
	if err := json.Unmarshal([]byte(content), &s); err != nil || s.Advice == "" {
		return content
	}
	out := s.Advice
	if len(s.Steps) > 0 {
		out += "\nSteps:"
		for i, step := range s.Steps {
			out += fmt.Sprintf("\n%d. %s", i+1, step)
		}
	}
	if s.NeedsCertifiedReview {
		out += "\nNeeds certified log review."
	}
	return out
}
