package llm

import (
	"context"
)

// Manager holds an optional primary client, an optional fallback client, and
// an optional streaming-capable client, and routes calls between them (C3).
type Manager struct {
	Primary  Client
	Fallback Client
	Streamer Client
}

// Chat selects Fallback if present, else Primary, else a Config error.
func (m *Manager) Chat(ctx context.Context, messages []Message) (string, error) {
	client := m.selectChat()
	if client == nil {
		return "", NewConfigError("no llm client configured (primary and fallback both absent)")
	}
	return client.Chat(ctx, messages)
}

// ChatWithTools routes identically to Chat.
func (m *Manager) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema) (ChatResult, error) {
	client := m.selectChat()
	if client == nil {
		return ChatResult{}, NewConfigError("no llm client configured (primary and fallback both absent)")
	}
	return client.ChatWithTools(ctx, messages, tools)
}

func (m *Manager) selectChat() Client {
	if m.Fallback != nil {
		return m.Fallback
	}
	return m.Primary
}

// ChatStream uses the streaming-capable client if configured; otherwise it
// falls back to a non-streaming Chat call and invokes cb exactly once with
// the complete result.
func (m *Manager) ChatStream(ctx context.Context, messages []Message, tools []ToolSchema, cb func(StreamChunk)) (string, error) {
	if m.Streamer != nil {
		return m.Streamer.ChatStream(ctx, messages, tools, cb)
	}
	result, err := m.ChatWithTools(ctx, messages, tools)
	if err != nil {
		return "", err
	}
	cb(StreamChunk{
		Text:         result.Text,
		ToolCalls:    result.ToolCalls,
		IsFinal:      true,
		FinishReason: StopReasonStop,
		Usage:        result.Usage,
	})
	return result.Text, nil
}

// absentDiagnosis marks a configured-but-absent client slot.
func absentDiagnosis(role string) Diagnosis {
	return Diagnosis{Provider: "none", Model: "", Reachable: false, Detail: role + " not configured"}
}

// DiagnosePrimary returns the primary client's self-diagnosis, or an absent marker.
func (m *Manager) DiagnosePrimary(ctx context.Context) Diagnosis {
	if m.Primary == nil {
		return absentDiagnosis("primary")
	}
	return m.Primary.Diagnose(ctx)
}

// DiagnoseFallback returns the fallback client's self-diagnosis, or an absent marker.
func (m *Manager) DiagnoseFallback(ctx context.Context) Diagnosis {
	if m.Fallback == nil {
		return absentDiagnosis("fallback")
	}
	return m.Fallback.Diagnose(ctx)
}
