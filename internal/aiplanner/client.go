package aiplanner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cronicorn/scheduler/internal/repository"
)

// AnthropicClient implements repository.AIClient against the Anthropic
// Messages API, translating the endpoint-scoped tool surface built in
// tools.go into the SDK's tool-use request/response shapes.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

func (c *AnthropicClient) Generate(ctx context.Context, input repository.GenerateInput) (repository.GenerateResult, error) {
	tools := make([]anthropic.ToolUnionParam, 0, len(input.Tools))
	for _, t := range input.Tools {
		schema, err := toInputSchema(t.Schema)
		if err != nil {
			return repository.GenerateResult{}, fmt.Errorf("encode schema for tool %q: %w", t.Name, err)
		}
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input.Prompt)),
		},
		Tools: tools,
	})
	if err != nil {
		return repository.GenerateResult{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	result := repository.GenerateResult{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	for _, block := range msg.Content {
		if tu := block.AsToolUse(); tu.Name != "" {
			var args map[string]any
			if err := json.Unmarshal(tu.Input, &args); err != nil {
				return result, fmt.Errorf("decode tool_use input for %q: %w", tu.Name, err)
			}
			result.ToolCalls = append(result.ToolCalls, repository.ToolCall{
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}

	return result, nil
}

// toInputSchema re-marshals our map[string]any JSON Schema into the SDK's
// typed InputSchema wrapper.
func toInputSchema(schema map[string]any) (anthropic.ToolInputSchemaParam, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	var out anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(raw, &out); err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}
	return out, nil
}
