package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// resultToolName is the synthetic tool the model is forced to call so its
// answer arrives as schema-shaped JSON instead of prose.
const resultToolName = "record_result"

// MessagesClient captures the subset of the Anthropic SDK client used here.
// It is satisfied by *sdk.MessageService so tests can substitute a mock.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicCaller implements Caller on top of the Anthropic Messages API.
type AnthropicCaller struct {
	msg       MessagesClient
	model     string
	maxTokens int
}

// NewAnthropicCaller builds a caller from a Messages client and model
// configuration.
func NewAnthropicCaller(msg MessagesClient, model string, maxTokens int) (*AnthropicCaller, error) {
	if msg == nil {
		return nil, errors.New("anthropic messages client is required")
	}
	if model == "" {
		return nil, errors.New("model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &AnthropicCaller{msg: msg, model: model, maxTokens: maxTokens}, nil
}

// NewAnthropicCallerFromAPIKey constructs a caller using the default
// Anthropic HTTP client.
func NewAnthropicCallerFromAPIKey(apiKey, model string, maxTokens int) (*AnthropicCaller, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicCaller(&ac.Messages, model, maxTokens)
}

// StructuredCall issues one Messages.New request with a single forced tool
// whose input schema is the result schema, validates the returned tool input
// against that schema, and unmarshals it into result.
func (c *AnthropicCaller) StructuredCall(ctx context.Context, systemPrompt, userPrompt string, resultSchema json.RawMessage, result any) error {
	return c.StructuredCallWithTools(ctx, systemPrompt, userPrompt, resultSchema, nil, result)
}

// StructuredCallWithTools is StructuredCall with additional tools the model
// may invoke before recording its result. Intermediate tool calls are not
// executed here; only the final record_result payload is returned.
func (c *AnthropicCaller) StructuredCallWithTools(ctx context.Context, systemPrompt, userPrompt string, resultSchema json.RawMessage, tools []ToolDefinition, result any) error {
	params, err := c.buildParams(systemPrompt, userPrompt, resultSchema, tools)
	if err != nil {
		return err
	}

	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return fmt.Errorf("anthropic messages.new: %w", err)
	}

	payload, err := extractResultPayload(msg)
	if err != nil {
		return err
	}

	if err := ValidateAgainstSchema(resultSchema, payload); err != nil {
		return fmt.Errorf("structured call result rejected by schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("failed to unmarshal structured result: %w", err)
	}
	return nil
}

func (c *AnthropicCaller) buildParams(systemPrompt, userPrompt string, resultSchema json.RawMessage, tools []ToolDefinition) (*sdk.MessageNewParams, error) {
	resultTool, err := toolParam(ToolDefinition{
		Name:        resultToolName,
		Description: "Record the final structured result.",
		InputSchema: resultSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid result schema: %w", err)
	}

	toolList := make([]sdk.ToolUnionParam, 0, len(tools)+1)
	for _, def := range tools {
		tp, err := toolParam(def)
		if err != nil {
			return nil, fmt.Errorf("invalid tool %q: %w", def.Name, err)
		}
		toolList = append(toolList, tp)
	}
	toolList = append(toolList, resultTool)

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(userPrompt))},
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}
	params.Tools = toolList
	if len(tools) == 0 {
		// Force the result tool directly when there is nothing else to call.
		params.ToolChoice = sdk.ToolChoiceParamOfTool(resultToolName)
	} else {
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	}
	return params, nil
}

func toolParam(def ToolDefinition) (sdk.ToolUnionParam, error) {
	var m map[string]any
	if len(def.InputSchema) > 0 {
		if err := json.Unmarshal(def.InputSchema, &m); err != nil {
			return sdk.ToolUnionParam{}, err
		}
	}
	u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: m}, def.Name)
	if def.Description != "" {
		u.OfTool.Description = sdk.String(def.Description)
	}
	return u, nil
}

func extractResultPayload(msg *sdk.Message) (json.RawMessage, error) {
	if msg == nil {
		return nil, errors.New("anthropic: response message is nil")
	}
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == resultToolName {
			return json.RawMessage(block.Input), nil
		}
	}
	return nil, fmt.Errorf("model did not call %s (stop reason %q)", resultToolName, msg.StopReason)
}
