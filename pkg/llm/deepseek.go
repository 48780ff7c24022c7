package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DeepseekClient is the Deepseek-compatible LLM client: bearer-auth HTTP,
// optional SSE streaming, OpenAI-compatible wire format. Built on the
// official OpenAI Go SDK the way the teacher's openailm.Client is, since the
// wire protocol is identical.
type DeepseekClient struct {
	base   *HTTPBase
	sdk    *openai.Client
	model  string
}

// NewDeepseekClient builds a client against endpoint (e.g.
// "https://api.deepseek.com") authenticating with apiKey.
func NewDeepseekClient(model, endpoint, apiKey string) (*DeepseekClient, error) {
	if apiKey == "" {
		return nil, NewConfigError("deepseek client requires a non-empty api_key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	sdk := openai.NewClient(opts...)
	return &DeepseekClient{
		base:  NewHTTPBase(endpoint, apiKey),
		sdk:   &sdk,
		model: model,
	}, nil
}

func (c *DeepseekClient) Provider() string { return "deepseek" }
func (c *DeepseekClient) Model() string    { return c.model }

func (c *DeepseekClient) Stats() ClientStats { return c.base.Stats() }

func (c *DeepseekClient) Diagnose(ctx context.Context) Diagnosis {
	return c.base.Diagnose(ctx, c.Provider(), c.model, "/models")
}

func (c *DeepseekClient) IsTransientError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable()
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}

// Chat calls /chat/completions and extracts choices[0].message.content (§4.1).
func (c *DeepseekClient) Chat(ctx context.Context, messages []Message) (string, error) {
	result, err := c.ChatWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ChatWithTools adds `tools` + `tool_choice: auto` when tools are supplied;
// a tool-call response is returned with IsFinal=false, a text response with
// IsFinal=true.
func (c *DeepseekClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema) (ChatResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertToolSchemas(tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	var result ChatResult
	_, err := c.base.WithRetryAndStats(ctx, func() ([]byte, error) {
		completion, err := c.sdk.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, classifyOpenAIErr(err)
		}
		if len(completion.Choices) == 0 {
			return nil, NewParseError(fmt.Errorf("empty choices in response"))
		}
		choice := completion.Choices[0]

		if len(choice.Message.ToolCalls) > 0 {
			calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
			for _, tc := range choice.Message.ToolCalls {
				calls = append(calls, ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			result = ChatResult{ToolCalls: calls, IsFinal: false}
		} else {
			result = ChatResult{Text: choice.Message.Content, IsFinal: true}
		}
		if completion.Usage.TotalTokens > 0 {
			result.Usage = &Usage{
				PromptTokens:     int(completion.Usage.PromptTokens),
				CompletionTokens: int(completion.Usage.CompletionTokens),
				TotalTokens:      int(completion.Usage.TotalTokens),
				StopReason:       normalizeStopReason(string(choice.FinishReason)),
			}
		}
		return nil, nil
	})
	if err != nil {
		return ChatResult{}, err
	}
	return result, nil
}

// ChatStream requests stream=true, invokes cb per delta.content, and returns
// the accumulated final text.
func (c *DeepseekClient) ChatStream(ctx context.Context, messages []Message, tools []ToolSchema, cb func(StreamChunk)) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertToolSchemas(tools)
	}

	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var text strings.Builder
	var lastReason string
	var lastUsage *Usage

	for stream.Next() {
		event := stream.Current()
		if len(event.Choices) == 0 {
			continue
		}
		choice := event.Choices[0]
		if choice.FinishReason != "" {
			lastReason = string(choice.FinishReason)
		}
		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			cb(StreamChunk{Text: choice.Delta.Content})
		}
		if len(choice.Delta.ToolCalls) > 0 {
			calls := make([]ToolCall, 0, len(choice.Delta.ToolCalls))
			for _, tc := range choice.Delta.ToolCalls {
				calls = append(calls, ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			cb(StreamChunk{ToolCalls: calls})
		}
		if event.Usage.TotalTokens > 0 {
			lastUsage = &Usage{
				PromptTokens:     int(event.Usage.PromptTokens),
				CompletionTokens: int(event.Usage.CompletionTokens),
				TotalTokens:      int(event.Usage.TotalTokens),
			}
		}
	}
	if err := stream.Err(); err != nil {
		return text.String(), classifyOpenAIErr(err)
	}
	reason := StopReasonStop
	if lastReason != "" {
		reason = normalizeStopReason(lastReason)
	}
	if lastUsage != nil {
		lastUsage.StopReason = reason
	}
	cb(StreamChunk{IsFinal: true, FinishReason: reason, Usage: lastUsage})
	return text.String(), nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	items := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Role:       "tool",
					ToolCallID: m.ToolCallID,
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(m.TextContent()),
					},
				},
			})
		case RoleAssistant:
			if len(m.ToolCalls) > 0 {
				calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID:   tc.ID,
							Type: "function",
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Function.Name,
								Arguments: tc.Function.Arguments,
							},
						},
					})
				}
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: calls},
				})
			} else {
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Role: "assistant",
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(m.TextContent()),
						},
					},
				})
			}
		case RoleSystem:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.TextContent()),
					},
				},
			})
		default: // user
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.TextContent()),
					},
				},
			})
		}
	}
	return items
}

func convertToolSchemas(tools []ToolSchema) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Function.Name,
					Description: openai.String(t.Function.Description),
					Parameters:  toOpenAIParameters(t.Function.Parameters),
				},
			},
		})
	}
	return out
}

// toOpenAIParameters converts a tool's parameter schema (a plain
// map[string]any per pkg/tools/registry.go's ReflectParameters) into the
// SDK's distinct named FunctionParameters type via a JSON round-trip,
// the same safe-conversion pattern convertToolSchemasToOllama in
// ollama.go uses rather than a direct type assertion.
func toOpenAIParameters(params any) openai.FunctionParameters {
	raw, err := json.Marshal(params)
	if err != nil {
		return openai.FunctionParameters{}
	}
	var out openai.FunctionParameters
	if err := json.Unmarshal(raw, &out); err != nil {
		return openai.FunctionParameters{}
	}
	return out
}

func normalizeStopReason(reason string) string {
	switch strings.ToLower(reason) {
	case "stop":
		return StopReasonStop
	case "length":
		return StopReasonLength
	case "tool_calls":
		return StopReasonTool
	default:
		return reason
	}
}

func classifyOpenAIErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout") {
		return NewTimeoutError(err)
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host") {
		return NewNetworkError(err)
	}
	for _, code := range []int{429, 500, 502, 503, 504} {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			return NewHTTPError(code, msg)
		}
	}
	return &Error{Kind: ErrOther, Message: msg, Cause: err}
}
