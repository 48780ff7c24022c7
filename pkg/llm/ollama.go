package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

var thinkTagRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// OllamaClient talks to a local or remote Ollama server through its native
// API. When the server is unreachable on the native endpoint it falls back
// to the OpenAI-compatible /v1/chat/completions route exposed by recent
// Ollama builds (§4.1's dual-endpoint requirement).
type OllamaClient struct {
	native     *api.Client
	compat     *DeepseekClient // reused: Ollama's /v1 route is OpenAI-compatible
	model      string
	options    map[string]any
	base       *HTTPBase
	useCompat  bool
}

// NewOllamaClient builds a client against baseURL (e.g. "http://localhost:11434").
func NewOllamaClient(model, baseURL string, options map[string]any) (*OllamaClient, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	customClient := &http.Client{Transport: transport, Timeout: 0}

	var nativeClient *api.Client
	var err error
	if baseURL != "" {
		u, perr := url.Parse(baseURL)
		if perr != nil {
			return nil, NewConfigError(fmt.Sprintf("invalid ollama base url: %v", perr))
		}
		nativeClient = api.NewClient(u, customClient)
	} else {
		nativeClient, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, NewConfigError(fmt.Sprintf("ollama client from environment: %v", err))
		}
		baseURL = "http://localhost:11434"
	}

	compat, err := NewDeepseekClient(model, strings.TrimSuffix(baseURL, "/")+"/v1", "ollama")
	if err != nil {
		return nil, err
	}

	return &OllamaClient{
		native:  nativeClient,
		compat:  compat,
		model:   model,
		options: options,
		base:    NewHTTPBase(baseURL, ""),
	}, nil
}

func (o *OllamaClient) Provider() string     { return "ollama" }
func (o *OllamaClient) Model() string        { return o.model }
func (o *OllamaClient) Stats() ClientStats   { return o.base.Stats() }

func (o *OllamaClient) Diagnose(ctx context.Context) Diagnosis {
	return o.base.Diagnose(ctx, o.Provider(), o.model, "/api/tags")
}

// IsTransientError treats connection-refused/reset and overload responses as
// retryable, matching the teacher's classification.
func (o *OllamaClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "overloaded")
}

func (o *OllamaClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if o.useCompat {
		return o.compat.Chat(ctx, messages)
	}
	result, err := o.chatNative(ctx, messages, nil)
	if err != nil && o.IsTransientError(err) {
		o.useCompat = true
		return o.compat.Chat(ctx, messages)
	}
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func (o *OllamaClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema) (ChatResult, error) {
	if o.useCompat {
		return o.compat.ChatWithTools(ctx, messages, tools)
	}
	result, err := o.chatNative(ctx, messages, tools)
	if err != nil && o.IsTransientError(err) {
		o.useCompat = true
		return o.compat.ChatWithTools(ctx, messages, tools)
	}
	return result, err
}

func (o *OllamaClient) chatNative(ctx context.Context, messages []Message, tools []ToolSchema) (ChatResult, error) {
	apiMessages := convertMessagesToOllama(messages)
	apiTools := convertToolSchemasToOllama(tools)

	streamVal := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: apiMessages,
		Options:  o.options,
		Tools:    apiTools,
		Stream:   &streamVal,
	}

	var result ChatResult
	_, err := o.base.WithRetryAndStats(ctx, func() ([]byte, error) {
		return nil, o.native.Chat(ctx, req, func(resp api.ChatResponse) error {
			text := stripThinkTags(resp.Message.Content)
			if len(resp.Message.ToolCalls) > 0 {
				calls := make([]ToolCall, 0, len(resp.Message.ToolCalls))
				for _, tc := range resp.Message.ToolCalls {
					argsB, _ := json.Marshal(tc.Function.Arguments)
					calls = append(calls, ToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: FunctionCall{
							Name:      tc.Function.Name,
							Arguments: string(argsB),
						},
					})
				}
				result = ChatResult{ToolCalls: calls, IsFinal: false}
				return nil
			}
			result = ChatResult{Text: text, IsFinal: true}
			if resp.Done {
				result.Usage = &Usage{
					PromptTokens:     resp.PromptEvalCount,
					CompletionTokens: resp.EvalCount,
					TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
					StopReason:       normalizeStopReason(resp.DoneReason),
				}
			}
			return nil
		})
	})
	if err != nil {
		return ChatResult{}, classifyOllamaErr(err)
	}
	return result, nil
}

// ChatStream streams the native response, stripping <think> tags from
// reasoning content and emitting it on StreamChunk.Thinking (§4.1).
func (o *OllamaClient) ChatStream(ctx context.Context, messages []Message, tools []ToolSchema, cb func(StreamChunk)) (string, error) {
	if o.useCompat {
		return o.compat.ChatStream(ctx, messages, tools, cb)
	}

	apiMessages := convertMessagesToOllama(messages)
	apiTools := convertToolSchemasToOllama(tools)
	streamVal := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: apiMessages,
		Options:  o.options,
		Tools:    apiTools,
		Stream:   &streamVal,
	}

	var text strings.Builder
	var pending strings.Builder
	inThink := false

	err := o.native.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Thinking != "" {
			cb(StreamChunk{Thinking: resp.Message.Thinking})
		}
		if resp.Message.Content != "" {
			pending.WriteString(resp.Message.Content)
			chunk, rest, stillOpen := drainThinkBuffer(pending.String(), inThink)
			inThink = stillOpen
			pending.Reset()
			pending.WriteString(rest)
			if chunk.text != "" {
				text.WriteString(chunk.text)
				cb(StreamChunk{Text: chunk.text})
			}
			if chunk.thinking != "" {
				cb(StreamChunk{Thinking: chunk.thinking})
			}
		}
		if len(resp.Message.ToolCalls) > 0 {
			calls := make([]ToolCall, 0, len(resp.Message.ToolCalls))
			for _, tc := range resp.Message.ToolCalls {
				argsB, _ := json.Marshal(tc.Function.Arguments)
				calls = append(calls, ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Function.Name,
						Arguments: string(argsB),
					},
				})
			}
			cb(StreamChunk{ToolCalls: calls})
		}
		if resp.Done {
			reason := normalizeStopReason(resp.DoneReason)
			usage := &Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
				StopReason:       reason,
			}
			cb(StreamChunk{IsFinal: true, FinishReason: reason, Usage: usage})
		}
		return nil
	})
	if err != nil {
		if o.IsTransientError(err) {
			o.useCompat = true
			return o.compat.ChatStream(ctx, messages, tools, cb)
		}
		return text.String(), classifyOllamaErr(err)
	}
	return text.String(), nil
}

type thinkChunk struct {
	text     string
	thinking string
}

// drainThinkBuffer splits buf into plain text and <think>...</think> content,
// tracking whether a <think> tag spans the chunk boundary.
func drainThinkBuffer(buf string, wasOpen bool) (thinkChunk, string, bool) {
	if wasOpen {
		if idx := strings.Index(buf, "</think>"); idx >= 0 {
			return thinkChunk{thinking: buf[:idx]}, buf[idx+len("</think>"):], false
		}
		return thinkChunk{thinking: buf}, "", true
	}
	if idx := strings.Index(buf, "<think>"); idx >= 0 {
		before := buf[:idx]
		rest := buf[idx+len("<think>"):]
		if end := strings.Index(rest, "</think>"); end >= 0 {
			return thinkChunk{text: before, thinking: rest[:end]}, rest[end+len("</think>"):], false
		}
		return thinkChunk{text: before, thinking: rest}, "", true
	}
	return thinkChunk{text: buf}, "", false
}

func stripThinkTags(s string) string {
	return thinkTagRe.ReplaceAllString(s, "")
}

func convertMessagesToOllama(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msg := api.Message{Role: m.Role, Content: m.TextContent()}
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			var calls []api.ToolCall
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				var apiArgs api.ToolCallFunctionArguments
				argBytes, _ := json.Marshal(args)
				_ = json.Unmarshal(argBytes, &apiArgs)
				calls = append(calls, api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: apiArgs,
					},
				})
			}
			msg.ToolCalls = calls
		}
		if m.Role == RoleTool {
			msg.ToolCallID = m.ToolCallID
		}
		out = append(out, msg)
	}
	return out
}

func convertToolSchemasToOllama(tools []ToolSchema) []api.Tool {
	if len(tools) == 0 {
		return nil
	}
	raw, err := json.Marshal(tools)
	if err != nil {
		return nil
	}
	var apiTools []api.Tool
	if err := json.Unmarshal(raw, &apiTools); err != nil {
		return nil
	}
	return apiTools
}

func classifyOllamaErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return NewNetworkError(err)
	}
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout") {
		return NewTimeoutError(err)
	}
	if strings.Contains(msg, "overloaded") {
		return &Error{Kind: ErrHTTP, StatusCode: 503, Message: err.Error(), Cause: err}
	}
	return &Error{Kind: ErrOther, Message: err.Error(), Cause: err}
}
