// Package llm provides the structured-call client used by the classifier,
// spec generator, clarifier and planner. A structured call sends a prompt
// pair and a JSON schema and returns a value shaped by that schema.
package llm

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes one tool advertised to the model during a
// structured call with tools.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Caller is the structured-call interface. Implementations must validate
// the model output against the result schema before unmarshalling it into
// result, which must be a pointer.
type Caller interface {
	StructuredCall(ctx context.Context, systemPrompt, userPrompt string, resultSchema json.RawMessage, result any) error
	StructuredCallWithTools(ctx context.Context, systemPrompt, userPrompt string, resultSchema json.RawMessage, tools []ToolDefinition, result any) error
}
