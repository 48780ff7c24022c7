package task

import "testing"

func TestPlanIndependentTasksRunInOneParallelStage(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2"),
	}
	plan, err := NewPlanner().Plan("p1", "test goal", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.TotalTasks() != 2 || len(plan.Stages) != 1 || len(plan.Stages[0].Tasks) != 2 {
		t.Fatalf("expected 1 stage with 2 tasks, got %+v", plan.Stages)
	}
}

func TestPlanSequentialDependencies(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2").WithDependency("t1"),
		NewSubTask("t3", "Task 3", "cmd3").WithDependency("t2"),
	}
	plan, err := NewPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(plan.Stages))
	}
	if plan.Stages[0].Tasks[0].ID != "t1" || plan.Stages[1].Tasks[0].ID != "t2" || plan.Stages[2].Tasks[0].ID != "t3" {
		t.Fatalf("unexpected stage order: %+v", plan.Stages)
	}
}

func TestPlanParallelBranches(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2").WithDependency("t1"),
		NewSubTask("t3", "Task 3", "cmd3").WithDependency("t1"),
	}
	plan, err := NewPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(plan.Stages))
	}
	if len(plan.Stages[0].Tasks) != 1 || len(plan.Stages[1].Tasks) != 2 {
		t.Fatalf("expected stage sizes [1,2], got %+v", plan.Stages)
	}
	if plan.Stages[1].Mode != ModeParallel {
		t.Fatalf("expected stage 1 parallel, got %s", plan.Stages[1].Mode)
	}
}

func TestPlanDetectsCyclicDependency(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1").WithDependency("t2"),
		NewSubTask("t2", "Task 2", "cmd2").WithDependency("t1"),
	}
	_, err := NewPlanner().Plan("p1", "test", tasks)
	taskErr, ok := err.(*Error)
	if !ok || taskErr.Kind != ErrCyclicDependency {
		t.Fatalf("expected CyclicDependency error, got %v", err)
	}
}

func TestPlanMaxParallelismSplitsStage(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2"),
		NewSubTask("t3", "Task 3", "cmd3"),
		NewSubTask("t4", "Task 4", "cmd4"),
	}
	plan, err := NewPlanner().WithMaxParallelism(2).Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Stages) != 2 || len(plan.Stages[0].Tasks) != 2 || len(plan.Stages[1].Tasks) != 2 {
		t.Fatalf("expected two stages of two tasks, got %+v", plan.Stages)
	}
}

func TestPlanSequentialOnlyForcesOneTaskPerStage(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2"),
	}
	plan, err := NewPlanner().SequentialOnly().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(plan.Stages))
	}
	for _, s := range plan.Stages {
		if s.Mode != ModeSequential {
			t.Fatalf("expected all stages sequential, got %+v", s)
		}
	}
}

func TestPlanRejectsInvalidDependency(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2").WithDependency("t999"),
	}
	_, err := NewPlanner().Plan("p1", "test", tasks)
	taskErr, ok := err.(*Error)
	if !ok || taskErr.Kind != ErrParse {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestPlanEmptyTasksRejected(t *testing.T) {
	_, err := NewPlanner().Plan("p1", "test", nil)
	if err == nil {
		t.Fatalf("expected error for empty task list")
	}
}

func TestAnalyzePlanMatchesScenarioNumbers(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1").WithEstimatedTime(10),
		NewSubTask("t2", "Task 2", "cmd2").WithEstimatedTime(20).WithDependency("t1"),
		NewSubTask("t3", "Task 3", "cmd3").WithEstimatedTime(15).WithDependency("t1"),
	}
	planner := NewPlanner()
	plan, err := planner.Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	analysis := planner.AnalyzePlan(plan)

	if analysis.TotalTasks != 3 || analysis.TotalStages != 2 {
		t.Fatalf("unexpected shape: %+v", analysis)
	}
	if analysis.SequentialTime != 45 {
		t.Fatalf("expected sequential_time 45, got %d", analysis.SequentialTime)
	}
	if analysis.ParallelTime != 30 {
		t.Fatalf("expected parallel_time 30 (10 + max(20,15)), got %d", analysis.ParallelTime)
	}
	if analysis.TimeSaved != 15 {
		t.Fatalf("expected time_saved 15, got %d", analysis.TimeSaved)
	}
}

func TestComplexDAGProducesThreeStages(t *testing.T) {
	tasks := []SubTask{
		NewSubTask("t1", "Task 1", "cmd1"),
		NewSubTask("t2", "Task 2", "cmd2").WithDependency("t1"),
		NewSubTask("t3", "Task 3", "cmd3").WithDependency("t1"),
		NewSubTask("t4", "Task 4", "cmd4").WithDependency("t2").WithDependency("t3"),
	}
	plan, err := NewPlanner().Plan("p1", "test", tasks)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(plan.Stages))
	}
	if len(plan.Stages[0].Tasks) != 1 || len(plan.Stages[1].Tasks) != 2 || len(plan.Stages[2].Tasks) != 1 {
		t.Fatalf("unexpected stage sizes: %+v", plan.Stages)
	}
}
