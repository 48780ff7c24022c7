package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"realconsole/pkg/commands"
	"realconsole/pkg/task"
)

// RegisterDefaultCommands binds the built-in "/name" commands (§6.3) to reg,
// closing over d for the ones that need access to its collaborators.
func RegisterDefaultCommands(d *Dispatcher, reg *commands.Registry) {
	reg.Register("/help", "list available commands", func(ctx context.Context, args string) (string, error) {
		var b strings.Builder
		b.WriteString("available commands:\n")
		for _, name := range reg.Names() {
			help, _ := reg.Help(name)
			fmt.Fprintf(&b, "  %-12s %s\n", name, help)
		}
		b.WriteString("  !<cmd>       run a shell command\n")
		return strings.TrimRight(b.String(), "\n"), nil
	})

	reg.Register("/quit", "exit RealConsole", func(ctx context.Context, args string) (string, error) {
		return commands.Quit, nil
	}, "/exit", "/q")

	reg.Register("/memory", "show recent conversation turns", func(ctx context.Context, args string) (string, error) {
		if d.mem == nil {
			return "memory is not configured", nil
		}
		n := 10
		if v, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && v > 0 {
			n = v
		}
		turns := d.mem.Recent(n)
		if len(turns) == 0 {
			return "(no turns recorded yet)", nil
		}
		var b strings.Builder
		for i := len(turns) - 1; i >= 0; i-- {
			t := turns[i]
			fmt.Fprintf(&b, "[%s] %s\n", t.Speaker, t.Content)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	})

	reg.Register("/clear", "clear recorded memory", func(ctx context.Context, args string) (string, error) {
		if d.mem != nil {
			d.mem.Clear()
		}
		return "memory cleared", nil
	})

	reg.Register("/log", "show recent execution-log entries", func(ctx context.Context, args string) (string, error) {
		if d.logger == nil {
			return "execution log is not configured", nil
		}
		n := 10
		if v, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && v > 0 {
			n = v
		}
		entries := d.logger.Recent(n)
		if len(entries) == 0 {
			return "(no commands logged yet)", nil
		}
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Format())
			b.WriteString("\n")
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}, "/history")

	reg.Register("/stats", "show execution-log statistics", func(ctx context.Context, args string) (string, error) {
		if d.logger == nil {
			return "execution log is not configured", nil
		}
		s := d.logger.Stats()
		return fmt.Sprintf("total=%d success=%d failed=%d avg=%.1fms max=%dms min=%dms rate=%.1f%%",
			s.Total, s.Success, s.Failed, s.AvgDurationMs, s.MaxDurationMs, s.MinDurationMs, s.SuccessRate()), nil
	})

	reg.Register("/context", "show tracked entities and working context", func(ctx context.Context, args string) (string, error) {
		if d.tracker == nil {
			return "context tracking is not configured", nil
		}
		entities := d.tracker.GetAllEntities()
		if len(entities) == 0 {
			return "(no entities tracked yet)", nil
		}
		var b strings.Builder
		for _, e := range entities {
			fmt.Fprintf(&b, "%s (%s)\n", e.DisplayName(), e.TypeName())
		}
		return strings.TrimRight(b.String(), "\n"), nil
	})

	reg.Register("/plan", "decompose a goal into a task plan", func(ctx context.Context, args string) (string, error) {
		goal := strings.TrimSpace(args)
		if goal == "" {
			return "usage: /plan <goal>", nil
		}
		if d.decomposer == nil || d.planner == nil {
			return "task planning is not configured", nil
		}

		wd, _ := os.Getwd()
		execCtx := task.Context{WorkingDir: wd, OS: runtime.GOOS, Shell: "/bin/sh"}
		subtasks, err := d.decomposer.Decompose(ctx, goal, execCtx)
		if err != nil {
			return "", fmt.Errorf("decomposition failed: %w", err)
		}

		plan, err := d.planner.Plan(goal, goal, subtasks)
		if err != nil {
			return "", fmt.Errorf("planning failed: %w", err)
		}
		d.lastPlan = &plan

		_ = d.planner.AnalyzePlan(plan)
		return fmt.Sprintf("plan %q ready: %d task(s) across %d stage(s) (est. %ds). run /execute to run it.",
			goal, plan.TotalTasks(), len(plan.Stages), plan.TotalEstimatedTime), nil
	})

	reg.Register("/execute", "run the last plan built by /plan", func(ctx context.Context, args string) (string, error) {
		if d.lastPlan == nil {
			return "no plan to execute; run /plan <goal> first", nil
		}
		if d.taskExec == nil {
			return "task execution is not configured", nil
		}
		summary, err := d.taskExec.Execute(ctx, *d.lastPlan)
		if err != nil {
			return "", fmt.Errorf("execution failed: %w", err)
		}
		return fmt.Sprintf("executed %d task(s): %d completed, %d failed, %d skipped (%.0f%% success)",
			summary.TotalTasks, summary.CompletedTasks, summary.FailedTasks, summary.SkippedTasks, summary.SuccessRate()*100), nil
	}, "/run")
}
