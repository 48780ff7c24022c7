package task

import (
	"context"
	"testing"
	"time"

	"realconsole/pkg/shell"
)

func testPlanner() *Planner { return NewPlanner() }

func TestExecuteSimplePlan(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Echo one", "echo one"),
		NewSubTask("t2", "Echo two", "echo two").WithDependency("t1"),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !summary.IsSuccess() || summary.CompletedTasks != 2 || summary.FailedTasks != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestExecuteWithFailure(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Fail", "false").WithRetryPolicy(SimpleRetryPolicy(0)),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.FailedTasks != 1 || summary.IsSuccess() {
		t.Fatalf("expected a failed task, got %+v", summary)
	}
}

func TestExecuteSkippableTask(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Fail but skippable", "false").
			WithSkippable().
			WithRetryPolicy(SimpleRetryPolicy(0)),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.SkippedTasks != 1 || summary.FailedTasks != 0 {
		t.Fatalf("expected a skipped task, got %+v", summary)
	}
}

func TestExecuteParallelStage(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Root", "echo root"),
		NewSubTask("t2", "Branch A", "echo a").WithDependency("t1"),
		NewSubTask("t3", "Branch B", "echo b").WithDependency("t1"),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.CompletedTasks != 3 {
		t.Fatalf("expected 3 completed tasks, got %+v", summary)
	}
}

func TestProgressCallbackInvoked(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "One", "echo one"),
		NewSubTask("t2", "Two", "echo two").WithDependency("t1"),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	var calls int
	exec := NewExecutor(shell.NewExecutor(""))
	exec.WithProgressCallback(func(p Progress) { calls++ })

	if _, err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls == 0 {
		t.Fatalf("expected progress callback to be invoked")
	}
}

func TestCancelExecution(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "One", "echo one"),
		NewSubTask("t2", "Two", "echo two").WithDependency("t1"),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	exec.Cancel()

	_, err = exec.Execute(context.Background(), plan)
	taskErr, ok := err.(*Error)
	if !ok || taskErr.Kind != ErrExecutionCancelled {
		t.Fatalf("expected ExecutionCancelled error, got %v", err)
	}
}

func TestTimeoutFailsSlowTask(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Slow", "sleep 2").WithRetryPolicy(SimpleRetryPolicy(0)),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	exec.WithTimeout(50 * time.Millisecond)

	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.FailedTasks != 1 {
		t.Fatalf("expected timed-out task to fail, got %+v", summary)
	}
}

func TestTimeoutWithSkippable(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Slow", "sleep 2").
			WithSkippable().
			WithRetryPolicy(SimpleRetryPolicy(0)),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	exec.WithTimeout(50 * time.Millisecond)

	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.SkippedTasks != 1 {
		t.Fatalf("expected timed-out skippable task to be skipped, got %+v", summary)
	}
}

func TestNoTimeoutAllowsSuccess(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Quick", "echo quick"),
	}
	plan, err := testPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	exec := NewExecutor(shell.NewExecutor(""))
	summary, err := exec.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !summary.IsSuccess() {
		t.Fatalf("expected success, got %+v", summary)
	}
}

func TestCDCommandWarningDetected(t *testing.T) {
	_, standalone := preprocessCommand("cd /tmp")
	if !standalone {
		t.Fatalf("expected standalone cd to be flagged")
	}
	_, chained := preprocessCommand("cd /tmp && ls")
	if chained {
		t.Fatalf("expected chained cd not to be flagged")
	}
}
