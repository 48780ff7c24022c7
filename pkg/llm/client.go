package llm

import "context"

// ToolSchema is the LLM-facing JSON-Schema-ish description of one callable
// tool, as accepted by OpenAI-compatible `tools:` arrays.
type ToolSchema struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
	} `json:"function"`
}

// Client is the capability every LLM implementation exposes (C1): uniform
// chat, tool-calling chat, streaming chat, and self-diagnosis. Every concrete
// client embeds *HTTPBase by composition rather than inheritance.
type Client interface {
	Provider() string
	Model() string

	// Chat sends messages and returns the final text reply.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatWithTools sends messages plus tool schemas; the result carries
	// either final text (IsFinal=true) or pending tool calls (IsFinal=false).
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema) (ChatResult, error)

	// ChatStream streams the reply, invoking cb once per chunk. Returns the
	// final accumulated text.
	ChatStream(ctx context.Context, messages []Message, tools []ToolSchema, cb func(StreamChunk)) (string, error)

	Diagnose(ctx context.Context) Diagnosis
	Stats() ClientStats
	IsTransientError(err error) bool
}
