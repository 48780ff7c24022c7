package pipeline

import (
	"context"
	"strings"
	"testing"

	"realconsole/pkg/llm"
)

type mockChatClient struct {
	response string
}

func (m *mockChatClient) Provider() string { return "mock" }
func (m *mockChatClient) Model() string    { return "mock" }

func (m *mockChatClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return m.response, nil
}

func (m *mockChatClient) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (llm.ChatResult, error) {
	return llm.ChatResult{IsFinal: true, Text: m.response}, nil
}

func (m *mockChatClient) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, cb func(llm.StreamChunk)) (string, error) {
	return m.response, nil
}

func (m *mockChatClient) Diagnose(ctx context.Context) llm.Diagnosis {
	return llm.Diagnosis{Provider: "mock", Model: "mock"}
}

func (m *mockChatClient) Stats() llm.ClientStats          { return llm.ClientStats{} }
func (m *mockChatClient) IsTransientError(err error) bool { return false }

// TestUnderstandAndGenerateBuildsShellCommand covers §8 scenario 1: a
// natural-language "find the newest .rs file" request becomes
// FindFiles|SortFiles|LimitFiles, in that order, rendered as one shell
// pipeline.
func TestUnderstandAndGenerateBuildsShellCommand(t *testing.T) {
	response := `{
		"applicable": true,
		"explanation": "",
		"base_operation": {"type": "FindFiles", "path": ".", "pattern": "*.rs"},
		"modifiers": [
			{"type": "SortFiles", "field": "time", "direction": "desc"},
			{"type": "LimitFiles", "count": 1}
		]
	}`

	b := NewBridge(&mockChatClient{response: response})
	plan, err := b.UnderstandAndGenerate(context.Background(), "find the newest rust file")
	if err != nil {
		t.Fatalf("UnderstandAndGenerate: %v", err)
	}

	got := plan.ToShellCommand()
	want := "find . -name '*.rs' -type f -exec ls -lh {} + | sort -k6 -hr | head -n 1"
	if got != want {
		t.Fatalf("ToShellCommand = %q, want %q", got, want)
	}
}

// TestUnderstandAndGenerateNotApplicable covers the bridge declining a
// request it can't express as a pipeline.
func TestUnderstandAndGenerateNotApplicable(t *testing.T) {
	response := `{"applicable": false, "explanation": "not a filesystem query", "base_operation": null, "modifiers": []}`

	b := NewBridge(&mockChatClient{response: response})
	_, err := b.UnderstandAndGenerate(context.Background(), "what's the weather")
	if err == nil {
		t.Fatal("expected NotApplicableError, got nil")
	}
	notApplicable, ok := err.(*NotApplicableError)
	if !ok {
		t.Fatalf("expected *NotApplicableError, got %T: %v", err, err)
	}
	if notApplicable.Explanation != "not a filesystem query" {
		t.Fatalf("unexpected explanation: %q", notApplicable.Explanation)
	}
}

// TestUnderstandAndGenerateRejectsUnsafePath covers §8 scenario 6:
// ValidateSafety must reject a path escaping the working directory before
// the plan is ever handed to the shell executor.
func TestUnderstandAndGenerateRejectsUnsafePath(t *testing.T) {
	response := `{
		"applicable": true,
		"explanation": "",
		"base_operation": {"type": "FindFiles", "path": "../../etc", "pattern": "*"},
		"modifiers": []
	}`

	b := NewBridge(&mockChatClient{response: response})
	_, err := b.UnderstandAndGenerate(context.Background(), "find files in ../../etc")
	if err == nil {
		t.Fatal("expected ValidateSafety to reject a path containing '..'")
	}
	if !strings.Contains(err.Error(), "..") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestUnderstandAndGenerateRejectsDangerousCommand covers §8 scenario 6's
// other half: a request that resolves to a known-dangerous command string
// must be rejected even when every individual path looks safe.
func TestUnderstandAndGenerateRejectsDangerousCommand(t *testing.T) {
	response := `{
		"applicable": true,
		"explanation": "",
		"base_operation": {"type": "FindFiles", "path": ".", "pattern": "*"},
		"modifiers": [{"type": "FilterFiles", "condition": "mkfs"}]
	}`

	b := NewBridge(&mockChatClient{response: response})
	_, err := b.UnderstandAndGenerate(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected ValidateSafety to reject a dangerous command fragment")
	}
}

func TestValidateRejectsEmptyPlan(t *testing.T) {
	var plan ExecutionPlan
	if err := plan.Validate(); err == nil {
		t.Fatal("expected error for empty plan")
	}
}

func TestValidateRejectsNonSourceFirstOp(t *testing.T) {
	plan := ExecutionPlan{Operations: []BaseOperation{{Kind: OpSortFiles}}}
	if err := plan.Validate(); err == nil {
		t.Fatal("expected error when first operation is not a source op")
	}
}
