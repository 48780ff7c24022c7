package agent

import (
	"context"
	"strings"
	"testing"

	"realconsole/pkg/commands"
	"realconsole/pkg/config"
	"realconsole/pkg/llm"
	"realconsole/pkg/memory"
	"realconsole/pkg/shell"
)

type mockChatClient struct {
	reply string
}

func (m *mockChatClient) Provider() string { return "mock" }
func (m *mockChatClient) Model() string    { return "mock" }
func (m *mockChatClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return m.reply, nil
}
func (m *mockChatClient) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (llm.ChatResult, error) {
	return llm.ChatResult{IsFinal: true, Text: m.reply}, nil
}
func (m *mockChatClient) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, cb func(llm.StreamChunk)) (string, error) {
	return m.reply, nil
}
func (m *mockChatClient) Diagnose(ctx context.Context) llm.Diagnosis {
	return llm.Diagnosis{Provider: "mock", Model: "mock"}
}
func (m *mockChatClient) Stats() llm.ClientStats          { return llm.ClientStats{} }
func (m *mockChatClient) IsTransientError(err error) bool { return false }

func newTestDispatcher(t *testing.T, client llm.Client) (*Dispatcher, *commands.Registry) {
	t.Helper()
	reg := commands.NewRegistry()
	cfg := config.Defaults()
	cfg.Features.ToolCallingEnabled = false
	d := New(cfg, reg, shell.NewExecutor(""), nil, nil, nil,
		&llm.Manager{Primary: client}, nil, nil, NewTemplateEngine(),
		memory.NewLogger(100), memory.NewMemory(50), nil, nil, nil)
	RegisterDefaultCommands(d, reg)
	return d, reg
}

func TestDispatchShellPrefix(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockChatClient{})

	var out strings.Builder
	reply, err := d.Dispatch(context.Background(), "!echo hello", func(s string) { out.WriteString(s) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "hello") {
		t.Fatalf("expected shell output to contain 'hello', got %q", reply)
	}
	if d.logger.Len() != 1 || d.logger.Recent(1)[0].CommandType != memory.CommandTypeShell {
		t.Fatalf("expected one Shell log entry")
	}
}

func TestDispatchKnownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockChatClient{})

	reply, err := d.Dispatch(context.Background(), "/help", func(s string) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "/help") || !strings.Contains(reply, "/quit") {
		t.Fatalf("expected /help output to list commands, got %q", reply)
	}
}

func TestDispatchQuitReturnsMagicString(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockChatClient{})

	reply, err := d.Dispatch(context.Background(), "/quit", func(s string) {})
	if err != nil || reply != commands.Quit {
		t.Fatalf("expected quit magic string, got %q err=%v", reply, err)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockChatClient{})

	reply, err := d.Dispatch(context.Background(), "/bogus", func(s string) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "unknown command") {
		t.Fatalf("expected unknown-command message, got %q", reply)
	}
	entries := d.logger.Recent(1)
	if entries[0].Success {
		t.Fatalf("expected unknown command to log as unsuccessful")
	}
}

func TestDispatchFreeTextFallsBackToChat(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockChatClient{reply: "general kenobi"})

	var out strings.Builder
	reply, err := d.Dispatch(context.Background(), "hello there", func(s string) { out.WriteString(s) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "general kenobi" {
		t.Fatalf("expected chat fallback reply, got %q", reply)
	}
	traces := d.RecentTraces(1)
	if len(traces) != 1 || traces[0].Route != RouteChat {
		t.Fatalf("expected a chat-routed trace, got %+v", traces)
	}
}

func TestDispatchRecordsMemoryExchange(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockChatClient{reply: "ok"})

	_, _ = d.Dispatch(context.Background(), "do a thing", func(s string) {})
	turns := d.mem.Recent(2)
	if len(turns) != 2 || turns[0].Content != "ok" || turns[1].Content != "do a thing" {
		t.Fatalf("expected user+assistant turns recorded, got %+v", turns)
	}
}

func TestDispatchNoLLMConfigured(t *testing.T) {
	reg := commands.NewRegistry()
	cfg := config.Defaults()
	d := New(cfg, reg, shell.NewExecutor(""), nil, nil, nil,
		&llm.Manager{}, nil, nil, NewTemplateEngine(),
		memory.NewLogger(100), memory.NewMemory(50), nil, nil, nil)
	RegisterDefaultCommands(d, reg)

	reply, err := d.Dispatch(context.Background(), "hello", func(s string) {})
	if err == nil {
		t.Fatalf("expected error when no llm client is configured")
	}
	if !strings.Contains(reply, "no LLM client") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}
