// Package llmjson provides the shared lenient-extract + schema-validate +
// one-shot-repair discipline every LLM-backed stage uses to turn raw model
// output into a typed struct (spec.md §4.4, §9: "each stage owns its own
// schema and its own one-shot repair retry").
package llmjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractLenient strips Markdown code fences and surrounding whitespace from
// raw LLM output, returning the best-guess JSON body.
func ExtractLenient(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// Validator is implemented by a per-stage schema: after structural
// unmarshal succeeds, Validate enforces the stage-specific contract (field
// counts, enum membership, citation bounds, ...).
type Validator interface {
	Validate() error
}

// Parse attempts strict JSON parsing with lenient extraction followed by
// schema validation. Returns a descriptive error identifying the violated
// rule, suitable for feeding into a repair prompt.
func Parse[T Validator](raw string, out T) error {
	body := ExtractLenient(raw)
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// RepairPrompt builds the re-prompt fed back to the model on the first
// parse/validation failure, referencing the violated rule per spec.md §9
// ("the repair prompt must reference the violated rule").
func RepairPrompt(schemaName, rawOutput string, violation error) string {
	return fmt.Sprintf(
		"Your previous response did not satisfy the %s schema: %v\n\n"+
			"Previous response:\n%s\n\n"+
			"Reply again with ONLY corrected JSON matching the schema, no prose, no code fences.",
		schemaName, violation, rawOutput,
	)
}
