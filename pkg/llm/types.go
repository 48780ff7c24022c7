// Package llm defines the capability surface shared by every large-language-model
// client in realconsole, plus the HTTP plumbing (C2) every implementation is
// built on top of by composition.
package llm

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Role constants for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// StopReason constants normalize provider-specific finish reasons.
const (
	StopReasonStop   = "stop"
	StopReasonLength = "length"
	StopReasonTool   = "tool_calls"
)

// ContentBlock type tags.
const (
	BlockTypeText     = "text"
	BlockTypeThinking = "thinking"
)

// Message is one turn of a conversation. Append-only within a request.
type Message struct {
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Timestamp  int64          `json:"timestamp,omitempty"`
}

// ContentBlock is a typed fragment of a message's content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolCall is a structured request from the LLM to invoke a named tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-string-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewTextMessage builds a single-block text message, stamped with the current time.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:      role,
		Content:   []ContentBlock{{Type: BlockTypeText, Text: text}},
		Timestamp: time.Now().Unix(),
	}
}

func NewSystemMessage(text string) Message    { return NewTextMessage(RoleSystem, text) }
func NewUserMessage(text string) Message      { return NewTextMessage(RoleUser, text) }
func NewAssistantMessage(text string) Message { return NewTextMessage(RoleAssistant, text) }

// NewToolMessage builds a Tool-role message carrying one call's result.
func NewToolMessage(toolCallID, content string) Message {
	m := NewTextMessage(RoleTool, content)
	m.ToolCallID = toolCallID
	return m
}

// TextContent concatenates every text block, skipping thinking blocks.
func (m Message) TextContent() string {
	var sb []byte
	for _, b := range m.Content {
		if b.Type == BlockTypeText {
			sb = append(sb, b.Text...)
		}
	}
	return string(sb)
}

// ThinkingContent concatenates every thinking block.
func (m Message) ThinkingContent() string {
	var sb []byte
	for _, b := range m.Content {
		if b.Type == BlockTypeThinking {
			sb = append(sb, b.Text...)
		}
	}
	return string(sb)
}

// StreamChunk is one increment of a streamed chat response.
type StreamChunk struct {
	Text         string     `json:"text,omitempty"`
	Thinking     string     `json:"thinking,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	IsFinal      bool       `json:"is_final"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
	Err          error      `json:"-"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// ChatResult is the outcome of ChatWithTools: either final text or pending tool calls.
type ChatResult struct {
	Text      string
	ToolCalls []ToolCall
	IsFinal   bool
	Usage     *Usage
}

// Diagnosis is a client's self-report, returned by Diagnose.
type Diagnosis struct {
	Provider  string
	Model     string
	Reachable bool
	Detail    string
}

// ClientStats mirrors the HTTP Base's call/success/error/retry counters (§4.1).
type ClientStats struct {
	Total   uint64
	Success uint64
	Errors  uint64
	Retries uint64
}
