// Package llmjson enforces strict-JSON replies from provider calls,
// driving a bounded repair loop when a reply will not parse.
package llmjson

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/scribe/internal/providers"
)

const repairSystemPrompt = "Return STRICT JSON only. No extra text."

// InvalidJSONError indicates a reply never became a valid JSON object
// after all repair attempts. ParseErr carries the last parse failure for
// diagnostics.
type InvalidJSONError struct {
	Attempts int
	ParseErr error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("could not parse or repair JSON after %d attempts: %v", e.Attempts, e.ParseErr)
}

func (e *InvalidJSONError) Unwrap() error { return e.ParseErr }

// RequestJSON issues the prompt through chat and returns the reply as a
// raw JSON object. On parse failure it first tries loose extraction of a
// {...} substring, then re-prompts up to maxRepairs times with a fixed
// repair instruction, carrying the latest bad output forward each time.
func RequestJSON(ctx context.Context, chat providers.ChatFunc, system, user string, maxRepairs int) (json.RawMessage, error) {
	raw, err := chat(ctx, system, user)
	if err != nil {
		return nil, err
	}

	obj, parseErr := ParseObjectStrict(raw)
	if parseErr == nil {
		return obj, nil
	}
	if extracted := ExtractObjectLoose(raw); extracted != "" {
		if obj, err := ParseObjectStrict(extracted); err == nil {
			return obj, nil
		}
	}

	bad := raw
	for attempt := 0; attempt < maxRepairs; attempt++ {
		repairUser := fmt.Sprintf(
			"Rewrite the following into valid JSON matching the required schema. Return only JSON.\n\n%s",
			bad,
		)
		bad, err = chat(ctx, repairSystemPrompt, repairUser)
		if err != nil {
			return nil, err
		}
		obj, parseErr = ParseObjectStrict(bad)
		if parseErr == nil {
			return obj, nil
		}
	}

	return nil, &InvalidJSONError{Attempts: maxRepairs, ParseErr: parseErr}
}

// ParseObjectStrict parses text as JSON and requires the top level to be
// an object, not a scalar or array.
func ParseObjectStrict(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("top-level JSON must be an object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return json.RawMessage(text), nil
}

// ExtractObjectLoose returns the substring between the first '{' and the
// last '}' in text, or "" when no such span exists.
func ExtractObjectLoose(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
