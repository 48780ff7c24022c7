package task

import (
	"context"
	"testing"

	"realconsole/pkg/llm"
)

type mockLLMClient struct {
	response string
}

func (m *mockLLMClient) Provider() string { return "mock" }
func (m *mockLLMClient) Model() string    { return "mock" }

func (m *mockLLMClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return m.response, nil
}

func (m *mockLLMClient) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (llm.ChatResult, error) {
	return llm.ChatResult{IsFinal: true, Text: m.response}, nil
}

func (m *mockLLMClient) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, cb func(llm.StreamChunk)) (string, error) {
	return m.response, nil
}

func (m *mockLLMClient) Diagnose(ctx context.Context) llm.Diagnosis {
	return llm.Diagnosis{Provider: "mock", Model: "mock"}
}

func (m *mockLLMClient) Stats() llm.ClientStats          { return llm.ClientStats{} }
func (m *mockLLMClient) IsTransientError(err error) bool { return false }

func TestDecomposeSimpleTask(t *testing.T) {
	response := `{
		"tasks": [
			{
				"id": "task1",
				"name": "Run tests",
				"description": "Execute unit tests",
				"command": "go test ./...",
				"estimated_time": 30,
				"depends_on": [],
				"task_type": "Shell",
				"skippable": false
			}
		]
	}`

	d := NewDecomposer(&mockLLMClient{response: response})
	tasks, err := d.Decompose(context.Background(), "run tests", Context{})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "task1" || tasks[0].Command != "go test ./..." {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestDecomposeWithDependencies(t *testing.T) {
	response := `{
		"tasks": [
			{"id": "t1", "name": "Install", "description": "", "command": "go mod download", "estimated_time": 30, "depends_on": [], "task_type": "Shell", "skippable": false},
			{"id": "t2", "name": "Test", "description": "", "command": "go test ./...", "estimated_time": 20, "depends_on": ["t1"], "task_type": "Shell", "skippable": false}
		]
	}`

	d := NewDecomposer(&mockLLMClient{response: response})
	tasks, err := d.Decompose(context.Background(), "test", Context{})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(tasks) != 2 || tasks[1].DependsOn[0] != "t1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestExtractJSONPure(t *testing.T) {
	got, err := extractJSON(`{"tasks": []}`)
	if err != nil || got != `{"tasks": []}` {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestExtractJSONWithCodeBlock(t *testing.T) {
	response := "Here is the task list:\n```json\n{\"tasks\": []}\n```\n"
	got, err := extractJSON(response)
	if err != nil || got != `{"tasks": []}` {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestExtractJSONWithSurroundingText(t *testing.T) {
	got, err := extractJSON(`Some explanation text {"tasks": []} more text`)
	if err != nil || got != `{"tasks": []}` {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestValidateTasksRejectsEmpty(t *testing.T) {
	d := NewDecomposer(&mockLLMClient{})
	if _, err := d.validateTasks(nil); err == nil {
		t.Fatalf("expected error for empty task list")
	}
}

func TestValidateTasksRejectsDuplicateID(t *testing.T) {
	d := NewDecomposer(&mockLLMClient{})
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t1", "Task 2", "cmd2"),
	}
	if _, err := d.validateTasks(tasks); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateTasksRejectsInvalidDependency(t *testing.T) {
	d := NewDecomposer(&mockLLMClient{})
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2").WithDependency("t3"),
	}
	if _, err := d.validateTasks(tasks); err == nil {
		t.Fatalf("expected invalid dependency error")
	}
}

func TestValidateTasksRejectsEmptyCommand(t *testing.T) {
	d := NewDecomposer(&mockLLMClient{})
	task := NewSubTask("t1", "Task 1", "")
	task.Command = "   "
	if _, err := d.validateTasks([]SubTask{task}); err == nil {
		t.Fatalf("expected empty command error")
	}
}

func TestHistoryRecording(t *testing.T) {
	response := `{"tasks": [{"id":"t1","name":"Test","description":"desc","command":"cmd","estimated_time":10,"task_type":"Shell"}]}`
	d := NewDecomposer(&mockLLMClient{response: response})

	if d.HistoryCount() != 0 {
		t.Fatalf("expected empty history")
	}

	if _, err := d.Decompose(context.Background(), "test goal", Context{}); err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if d.HistoryCount() != 1 {
		t.Fatalf("expected history count 1, got %d", d.HistoryCount())
	}

	d.ClearHistory()
	if d.HistoryCount() != 0 {
		t.Fatalf("expected history cleared")
	}
}
