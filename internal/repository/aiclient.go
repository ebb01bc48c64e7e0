package repository

import "context"

// ToolSpec describes one operation the AI model may invoke, scoped to a
// single endpoint analysis. The tool dispatcher (internal/aiplanner)
// validates, clamps, and writes — the model never touches the repository
// directly.
type ToolSpec struct {
	Name        string
	Description string
	// Schema is a JSON Schema object describing the tool's parameters.
	Schema map[string]any
}

// ToolCall is a single invocation the model asked for.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// GenerateInput bundles the endpoint-scoped analysis context handed to the model.
type GenerateInput struct {
	Prompt string
	Tools  []ToolSpec
}

// GenerateResult carries the model's tool calls plus token accounting.
type GenerateResult struct {
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// AIClient is the model-agnostic port the AI planner worker calls.
type AIClient interface {
	Generate(ctx context.Context, input GenerateInput) (GenerateResult, error)
}
