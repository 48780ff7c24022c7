package task

import (
	"context"
	"strings"
	"sync"
	"time"

	"realconsole/pkg/shell"
)

// ProgressCallback is invoked after every task completes with a snapshot of
// overall progress.
type ProgressCallback func(Progress)

type executorState struct {
	mu             sync.Mutex
	currentStage   int
	totalStages    int
	currentTask    string
	completedTasks int
	totalTasks     int
	startTime      time.Time
	cancelled      bool
}

// Executor runs an ExecutionPlan stage by stage, dispatching each stage's
// tasks sequentially or in parallel per its Mode (C13).
type Executor struct {
	shell    *shell.Executor
	progress ProgressCallback
	state    *executorState
	timeout  time.Duration
}

// NewExecutor builds an Executor over the given shell.Executor, with no
// timeout and no progress callback by default.
func NewExecutor(shellExecutor *shell.Executor) *Executor {
	return &Executor{shell: shellExecutor, state: &executorState{}}
}

// WithProgressCallback sets the callback invoked after each task completes.
func (e *Executor) WithProgressCallback(cb ProgressCallback) *Executor {
	e.progress = cb
	return e
}

// WithTimeout bounds every single task's execution time.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	e.timeout = d
	return e
}

// Execute runs every stage of plan in order, returning a Summary. Stages
// run sequentially with respect to each other; a stage's own tasks run
// per its Mode.
func (e *Executor) Execute(ctx context.Context, plan ExecutionPlan) (Summary, error) {
	e.state.mu.Lock()
	e.state.startTime = time.Now()
	e.state.totalStages = len(plan.Stages)
	e.state.totalTasks = plan.TotalTasks()
	e.state.completedTasks = 0
	e.state.currentStage = 0
	e.state.cancelled = false
	e.state.mu.Unlock()

	start := time.Now()
	var allResults []Result

	for stageIdx, stage := range plan.Stages {
		if e.isCancelled() {
			return Summary{}, &Error{Kind: ErrExecutionCancelled}
		}

		e.state.mu.Lock()
		e.state.currentStage = stageIdx
		e.state.mu.Unlock()
		e.reportProgress()

		var (
			stageResults []Result
			err          error
		)
		switch stage.Mode {
		case ModeParallel:
			stageResults, err = e.executeParallel(ctx, stage)
		default:
			stageResults, err = e.executeSequential(ctx, stage)
		}
		if err != nil {
			return Summary{}, err
		}
		allResults = append(allResults, stageResults...)
	}

	elapsed := int(time.Since(start).Seconds())

	completed, failed, skipped := 0, 0, 0
	for _, r := range allResults {
		switch r.Status {
		case StatusSuccess:
			completed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}

	return Summary{
		PlanID:         plan.ID,
		TotalTasks:     plan.TotalTasks(),
		CompletedTasks: completed,
		FailedTasks:    failed,
		SkippedTasks:   skipped,
		TotalTime:      elapsed,
		TaskResults:    allResults,
	}, nil
}

func (e *Executor) executeSequential(ctx context.Context, stage ExecutionStage) ([]Result, error) {
	results := make([]Result, 0, len(stage.Tasks))
	for _, t := range stage.Tasks {
		results = append(results, e.executeTask(ctx, t))
		e.state.mu.Lock()
		e.state.completedTasks++
		e.state.mu.Unlock()
		e.reportProgress()
	}
	return results, nil
}

// executeParallel runs every task in stage concurrently, collecting
// results in COMPLETION order rather than spawn order: whichever task
// finishes first is placed first, so a slow straggler never holds up the
// result stream for tasks that already finished.
func (e *Executor) executeParallel(ctx context.Context, stage ExecutionStage) ([]Result, error) {
	resultCh := make(chan Result, len(stage.Tasks))

	var wg sync.WaitGroup
	for _, t := range stage.Tasks {
		wg.Add(1)
		go func(t SubTask) {
			defer wg.Done()
			resultCh <- e.executeTask(ctx, t)
		}(t)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(stage.Tasks))
	for r := range resultCh {
		results = append(results, r)
		e.state.mu.Lock()
		e.state.completedTasks++
		e.state.mu.Unlock()
		e.reportProgress()
	}

	return results, nil
}

func (e *Executor) executeTask(ctx context.Context, t SubTask) Result {
	e.state.mu.Lock()
	e.state.currentTask = t.Name
	e.state.mu.Unlock()
	e.reportProgress()

	start := time.Now()
	status, output, errMsg := e.executeWithRetry(ctx, t)
	end := time.Now()

	return Result{
		Task:      t,
		Status:    status,
		Output:    output,
		Error:     errMsg,
		StartTime: start,
		EndTime:   end,
		Duration:  int(end.Sub(start).Seconds()),
	}
}

func (e *Executor) executeWithRetry(ctx context.Context, t SubTask) (Status, string, string) {
	policy := SimpleRetryPolicy(3)
	if t.RetryPolicy != nil {
		policy = *t.RetryPolicy
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.RetryIntervalSec
			if policy.ExponentialBackoff {
				delay = policy.RetryIntervalSec * (1 << (attempt - 1))
			}
			select {
			case <-time.After(time.Duration(delay) * time.Second):
			case <-ctx.Done():
				return StatusFailed, "", ctx.Err().Error()
			}
		}

		output, err := e.executeCommand(ctx, t.Command)
		if err == nil {
			return StatusSuccess, output, ""
		}
		lastErr = err

		if attempt == policy.MaxRetries {
			if t.Skippable {
				return StatusSkipped, "", lastErr.Error()
			}
			return StatusFailed, "", lastErr.Error()
		}
	}

	return StatusFailed, "", "retries exhausted"
}

// preprocessCommand warns (to the caller, via the returned bool) about a
// standalone "cd" that won't affect later commands, without modifying the
// command itself.
func preprocessCommand(command string) (cmd string, standaloneCD bool) {
	trimmed := strings.TrimSpace(command)
	standaloneCD = strings.HasPrefix(trimmed, "cd ") && !strings.Contains(trimmed, "&&") && !strings.Contains(trimmed, ";")
	return command, standaloneCD
}

func (e *Executor) executeCommand(ctx context.Context, command string) (string, error) {
	processed, _ := preprocessCommand(command)

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result := e.shell.ExecuteWithAnalysis(runCtx, processed)
	if runCtx.Err() != nil {
		return "", newErr(ErrShellExecution, "command timed out after %s", e.timeout)
	}
	if !result.Success {
		msg := result.ErrorAnalysis
		if msg == "" {
			msg = result.Output
		}
		return "", newErr(ErrShellExecution, "%s", msg)
	}
	return result.Output, nil
}

func (e *Executor) reportProgress() {
	if e.progress == nil {
		return
	}

	e.state.mu.Lock()
	elapsed := int(time.Since(e.state.startTime).Seconds())
	completed := e.state.completedTasks
	total := e.state.totalTasks
	remaining := total - completed
	if remaining < 0 {
		remaining = 0
	}
	estimatedRemaining := 0
	if completed > 0 {
		avgPerTask := elapsed / completed
		estimatedRemaining = avgPerTask * remaining
	}
	p := Progress{
		CurrentStage:       e.state.currentStage,
		TotalStages:        e.state.totalStages,
		CurrentTask:        e.state.currentTask,
		CompletedTasks:     completed,
		TotalTasks:         total,
		ElapsedTime:        elapsed,
		EstimatedRemaining: estimatedRemaining,
	}
	e.state.mu.Unlock()

	e.progress(p)
}

func (e *Executor) isCancelled() bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.cancelled
}

// Cancel requests that Execute stop before starting its next stage.
func (e *Executor) Cancel() {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.cancelled = true
}
