package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"realconsole/pkg/llm"
)

// decompositionRecord is kept for learning/diagnostics; nothing reads the
// command history back into the prompt yet, but the bound (100) and the
// record shape come straight from the original decomposer.
type decompositionRecord struct {
	Goal      string
	Context   Context
	Subtasks  []SubTask
	Timestamp time.Time
	Success   bool
}

const maxDecompositionHistory = 100

// Decomposer uses an LLM to turn a high-level goal into an executable
// subtask list (C11).
type Decomposer struct {
	client      llm.Client
	mu          sync.Mutex
	history     []decompositionRecord
	maxSubtasks int
}

// NewDecomposer builds a Decomposer with the teacher's default cap of 20
// subtasks per decomposition.
func NewDecomposer(client llm.Client) *Decomposer {
	return &Decomposer{client: client, maxSubtasks: 20}
}

// WithMaxSubtasks overrides the per-decomposition subtask cap.
func (d *Decomposer) WithMaxSubtasks(max int) *Decomposer {
	d.maxSubtasks = max
	return d
}

// Decompose asks the LLM to break goal into subtasks, validates the result,
// and records it to history.
func (d *Decomposer) Decompose(ctx context.Context, goal string, execCtx Context) ([]SubTask, error) {
	subtasks, err := d.decomposeWithLLM(ctx, goal, execCtx)
	if err != nil {
		return nil, err
	}

	validated, err := d.validateTasks(subtasks)
	if err != nil {
		return nil, err
	}

	d.recordDecomposition(goal, execCtx, validated, true)
	return validated, nil
}

func (d *Decomposer) decomposeWithLLM(ctx context.Context, goal string, execCtx Context) ([]SubTask, error) {
	prompt := d.buildDecompositionPrompt(goal, execCtx)

	response, err := d.client.Chat(ctx, []llm.Message{llm.NewUserMessage(prompt)})
	if err != nil {
		return nil, newErr(ErrLLM, "%v", err)
	}
	return d.parseLLMResponse(response)
}

func (d *Decomposer) buildDecompositionPrompt(goal string, execCtx Context) string {
	return fmt.Sprintf(`You are a task decomposition expert. Break the following goal into an executable subtask sequence.

Goal: %s

Current context:
- Working directory: %s
- OS: %s
- Shell: %s
- User: %s

Reply using this JSON format:
{
  "tasks": [
    {
      "id": "task1",
      "name": "Task name",
      "description": "What this task does in detail",
      "command": "The exact command to run",
      "estimated_time": 30,
      "depends_on": [],
      "task_type": "Shell",
      "skippable": false
    },
    {
      "id": "task2",
      "name": "Next task",
      "description": "Task description",
      "command": "command",
      "estimated_time": 20,
      "depends_on": ["task1"],
      "task_type": "Shell",
      "skippable": false
    }
  ]
}

Requirements:
1. Tasks must be concrete and executable, not abstract
2. Commands must be valid shell commands for a %s system
3. Identify task dependencies correctly (depends_on lists prerequisite ids)
4. Provide reasonable time estimates in seconds
5. Order tasks in execution order
6. task_type may only be: Shell, FileOperation, Network, Validation, UserInput
7. Set skippable to true for tasks that are safe to skip on failure
8. No more than %d tasks
9. Every task id must be unique
10. Output must be valid JSON

Notes:
- Output only JSON, no explanatory text
- Use double quotes, not single quotes
- Escape special characters inside command strings

Important shell execution rule:
- Each command runs in its own independent shell process
- A "cd" command does not affect the working directory of later commands
- To run a command in a specific directory, use one of:
  1. An absolute path: mkdir -p /path/to/dir && /path/to/dir/script.sh
  2. A "cd &&" chain: cd target_dir && make build
  3. A subshell: (cd target_dir && make)
- Do not emit a standalone "cd" command as its own task
- Fold any directory change into the command that needs it`,
		goal, execCtx.WorkingDir, execCtx.OS, execCtx.Shell, execCtx.User, execCtx.OS, d.maxSubtasks)
}

type subTaskJSON struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Command       string   `json:"command"`
	EstimatedTime int      `json:"estimated_time"`
	DependsOn     []string `json:"depends_on"`
	TaskType      string   `json:"task_type"`
	Skippable     bool     `json:"skippable"`
}

type taskListResponse struct {
	Tasks []subTaskJSON `json:"tasks"`
}

func (j subTaskJSON) toSubTask() SubTask {
	kind := KindShell
	switch strings.ToLower(j.TaskType) {
	case "shell":
		kind = KindShell
	case "fileoperation":
		kind = KindFileOperation
	case "network":
		kind = KindNetwork
	case "validation":
		kind = KindValidation
	case "userinput":
		kind = KindUserInput
	}
	return SubTask{
		ID:            j.ID,
		Name:          j.Name,
		Description:   j.Description,
		Command:       j.Command,
		EstimatedTime: j.EstimatedTime,
		DependsOn:     j.DependsOn,
		Type:          kind,
		Skippable:     j.Skippable,
	}
}

func (d *Decomposer) parseLLMResponse(response string) ([]SubTask, error) {
	jsonStr, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var list taskListResponse
	if err := json.Unmarshal([]byte(jsonStr), &list); err != nil {
		return nil, newErr(ErrParse, "JSON decode failed: %v", err)
	}

	subtasks := make([]SubTask, len(list.Tasks))
	for i, j := range list.Tasks {
		subtasks[i] = j.toSubTask()
	}
	return subtasks, nil
}

// extractJSON handles the three shapes an LLM tends to reply with: raw
// JSON, a fenced ```json block, or JSON embedded in prose.
func extractJSON(response string) (string, error) {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return trimmed, nil
	}

	if start := strings.Index(trimmed, "```json"); start != -1 {
		after := trimmed[start+len("```json"):]
		if end := strings.Index(after, "```"); end != -1 {
			return strings.TrimSpace(after[:end]), nil
		}
	}

	if start := strings.IndexByte(trimmed, '{'); start != -1 {
		if end := strings.LastIndexByte(trimmed, '}'); end > start {
			return trimmed[start : end+1], nil
		}
	}

	return "", newErr(ErrParse, "could not extract valid JSON from LLM response")
}

// validateTasks enforces: non-empty, within the subtask cap (truncating if
// over), unique ids, dependencies that resolve, and non-empty commands.
func (d *Decomposer) validateTasks(tasks []SubTask) ([]SubTask, error) {
	if len(tasks) == 0 {
		return nil, newErr(ErrParse, "task list is empty")
	}

	if len(tasks) > d.maxSubtasks {
		tasks = tasks[:d.maxSubtasks]
	}

	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if ids[t.ID] {
			return nil, newErr(ErrParse, "duplicate task id: %s", t.ID)
		}
		ids[t.ID] = true
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !ids[dep] {
				return nil, newErr(ErrParse, "task %s depends on nonexistent task %s", t.ID, dep)
			}
		}
	}

	for _, t := range tasks {
		if strings.TrimSpace(t.Command) == "" {
			return nil, newErr(ErrParse, "task %s has an empty command", t.ID)
		}
	}

	return tasks, nil
}

func (d *Decomposer) recordDecomposition(goal string, execCtx Context, subtasks []SubTask, success bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, decompositionRecord{
		Goal:      goal,
		Context:   execCtx,
		Subtasks:  subtasks,
		Timestamp: time.Now(),
		Success:   success,
	})
	if len(d.history) > maxDecompositionHistory {
		d.history = d.history[len(d.history)-maxDecompositionHistory:]
	}
}

// HistoryCount returns how many decompositions are currently recorded.
func (d *Decomposer) HistoryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history)
}

// ClearHistory drops every recorded decomposition.
func (d *Decomposer) ClearHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}
