package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realconsole/pkg/agent"
	"realconsole/pkg/commands"
	"realconsole/pkg/config"
	"realconsole/pkg/contexttracker"
	"realconsole/pkg/conversation"
	"realconsole/pkg/intent"
	"realconsole/pkg/llm"
	"realconsole/pkg/memory"
	"realconsole/pkg/metrics"
	"realconsole/pkg/monitor"
	"realconsole/pkg/pipeline"
	"realconsole/pkg/schedule"
	"realconsole/pkg/shell"
	"realconsole/pkg/task"
	"realconsole/pkg/tools"
)

const (
	configPath = "realconsole.yaml"
	envPath    = ".env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.SetupEnvironment("info")

	config.LoadEnv(envPath)
	reloadCh := config.WatchConfig(ctx, configPath)

	lines := readLines(ctx)

	for {
		err := runConsole(ctx, reloadCh, lines)
		if err != nil {
			slog.Error("console session failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-reloadCh:
				slog.Info("configuration change detected while waiting, retrying immediately")
			case <-time.After(5 * time.Second):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
			slog.Info("configuration reloaded, rebuilding console")
		}
	}
}

// readLines pipes stdin into a channel so the console loop can select
// between a new line, a config reload, and shutdown.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// runConsole builds every collaborator from the current configuration and
// runs the read-dispatch-print loop until shutdown, a config reload, or a
// /quit command.
func runConsole(ctx context.Context, reloadCh <-chan struct{}, lines <-chan string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", configPath, err)
	}

	primary, err := llm.NewFromEndpoint(cfg.LLM.Primary.Provider, cfg.LLM.Primary.Model, cfg.LLM.Primary.Endpoint, cfg.LLM.Primary.APIKey)
	if err != nil {
		return fmt.Errorf("failed to init primary LLM client: %w", err)
	}
	var fallback llm.Client
	if cfg.LLM.Fallback != nil {
		fallback, err = llm.NewFromEndpoint(cfg.LLM.Fallback.Provider, cfg.LLM.Fallback.Model, cfg.LLM.Fallback.Endpoint, cfg.LLM.Fallback.APIKey)
		if err != nil {
			return fmt.Errorf("failed to init fallback LLM client: %w", err)
		}
	}
	llmMgr := &llm.Manager{Primary: primary, Fallback: fallback}
	chatClient := primary
	if fallback != nil {
		chatClient = fallback
	}

	shellExc := shell.NewExecutor("")

	matcher, err := intent.NewMatcher(256, intent.FuzzyConfig{})
	if err != nil {
		return fmt.Errorf("failed to build intent matcher: %w", err)
	}

	bridge := pipeline.NewBridge(chatClient)

	toolReg := tools.NewRegistry()
	toolExec := tools.NewExecutor(toolReg)
	toolExec.MaxIterations = cfg.Features.MaxToolIterations
	toolExec.MaxToolsPerRound = cfg.Features.MaxToolsPerRound

	convMgr := conversation.NewConversationManager(5 * time.Minute)
	tracker := contexttracker.New()
	tmpl := agent.NewTemplateEngine()

	execLog := memory.NewLogger(cfg.Memory.Capacity)
	mem := memory.NewMemory(cfg.Memory.Capacity)
	if cfg.Memory.PersistentFile != "" {
		mem = mem.WithPersistence(cfg.Memory.PersistentFile, cfg.Memory.AutoSave)
	}

	decomposer := task.NewDecomposer(chatClient)
	planner := task.NewPlanner()
	taskExec := task.NewExecutor(shellExc)

	reg := commands.NewRegistry()
	d := agent.New(cfg, reg, shellExc, matcher, bridge, toolExec, llmMgr, convMgr, tracker, tmpl, execLog, mem, decomposer, planner, taskExec)
	agent.RegisterDefaultCommands(d, reg)

	mtr := metrics.New()
	mon := monitor.SetupEnvironment("info")
	d = d.WithMonitor(mon).WithMetrics(mtr)

	sched := schedule.New()
	if err := sched.RegisterHousekeeping(convMgr); err != nil {
		return fmt.Errorf("failed to register housekeeping jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			if cfg.Memory.PersistentFile != "" && cfg.Memory.AutoSave {
				mem.Save()
			}
			return nil
		case <-reloadCh:
			if cfg.Memory.PersistentFile != "" && cfg.Memory.AutoSave {
				mem.Save()
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				fmt.Print("> ")
				continue
			}
			reply, err := d.Dispatch(ctx, line, func(chunk string) {
				fmt.Print(chunk)
			})
			fmt.Println()
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if reply == commands.Quit {
				if cfg.Memory.PersistentFile != "" && cfg.Memory.AutoSave {
					mem.Save()
				}
				return nil
			}
			fmt.Print("> ")
		}
	}
}
