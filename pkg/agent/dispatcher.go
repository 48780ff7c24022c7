// Package agent implements the Dispatcher (C15): the per-line router that
// decides whether an input line is a shell escape, a built-in command, or
// free text to be understood through the intent matcher, the LLM→pipeline
// bridge, the tool-calling loop, or plain chat, in that order (§4.11).
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

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
	"realconsole/pkg/shell"
	"realconsole/pkg/task"
	"realconsole/pkg/tools"
)

// Route names the path a line was dispatched through, surfaced on
// DispatchTrace for diagnostics and logging.
type Route string

const (
	RouteShell    Route = "shell"
	RouteCommand  Route = "command"
	RoutePipeline Route = "pipeline"
	RouteTemplate Route = "template"
	RouteTools    Route = "tools"
	RouteChat     Route = "chat"
)

// DispatchTrace records how one line was routed and, for the free-text
// branch, the two confidence signals an operator needs to tell "the matcher
// was sure and wrong" apart from "the bridge declined and we fell through to
// chat": the Intent Matcher's best-match confidence and the LLM→Pipeline
// Bridge's applicability verdict and explanation.
type DispatchTrace struct {
	RequestID         string
	Timestamp         time.Time
	Input             string
	Route             Route
	IntentName        string
	IntentConfidence  float64
	BridgeAttempted   bool
	BridgeApplicable  bool
	BridgeExplanation string
}

const maxTraces = 200

// Dispatcher wires every collaborator component the Dispatch algorithm needs
// and holds the bounded dispatch-trace ring used for diagnostics.
type Dispatcher struct {
	cfg *config.Config

	commands *commands.Registry
	shellExc *shell.Executor
	matcher  *intent.Matcher
	bridge   *pipeline.Bridge
	toolExec *tools.Executor
	llmMgr   *llm.Manager
	conv     *conversation.ConversationManager
	tracker  *contexttracker.Tracker
	tmpl     *TemplateEngine

	logger *memory.Logger
	mem    *memory.Memory
	mon    monitor.Monitor
	mtr    *metrics.Registry

	decomposer *task.Decomposer
	planner    *task.Planner
	taskExec   *task.Executor
	lastPlan   *task.ExecutionPlan

	traces []DispatchTrace
}

// New builds a Dispatcher from its already-constructed collaborators. Nil
// collaborators are tolerated where the corresponding feature is disabled by
// config (e.g. bridge may be nil when no LLM is configured).
func New(cfg *config.Config, cmdRegistry *commands.Registry, shellExc *shell.Executor, matcher *intent.Matcher, bridge *pipeline.Bridge, toolExec *tools.Executor, llmMgr *llm.Manager, conv *conversation.ConversationManager, tracker *contexttracker.Tracker, tmpl *TemplateEngine, logger *memory.Logger, mem *memory.Memory, decomposer *task.Decomposer, planner *task.Planner, taskExec *task.Executor) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		commands:   cmdRegistry,
		shellExc:   shellExc,
		matcher:    matcher,
		bridge:     bridge,
		toolExec:   toolExec,
		llmMgr:     llmMgr,
		conv:       conv,
		tracker:    tracker,
		tmpl:       tmpl,
		logger:     logger,
		mem:        mem,
		decomposer: decomposer,
		planner:    planner,
		taskExec:   taskExec,
	}
}

// WithMonitor attaches an observability sink that receives one message per
// user input and one per assistant reply. Returns d for chaining.
func (d *Dispatcher) WithMonitor(m monitor.Monitor) *Dispatcher {
	d.mon = m
	return d
}

// WithMetrics attaches a Prometheus registry recording one counter increment
// per dispatched route. Returns d for chaining.
func (d *Dispatcher) WithMetrics(m *metrics.Registry) *Dispatcher {
	d.mtr = m
	return d
}

// chatClient picks the client the tool-calling loop and plain-chat fallback
// talk to, mirroring Manager.selectChat's fallback-over-primary rule (that
// method is unexported, so Dispatch needs its own copy of the policy).
func (d *Dispatcher) chatClient() llm.Client {
	if d.llmMgr == nil {
		return nil
	}
	if d.llmMgr.Fallback != nil {
		return d.llmMgr.Fallback
	}
	return d.llmMgr.Primary
}

// Dispatch runs the §4.11 algorithm against one input line. emit is invoked
// with output chunks as they become available (once, with the whole text,
// for every route except streamed chat); the returned string is always the
// full reply, used by the caller to decide whether it equals
// commands.Quit.
func (d *Dispatcher) Dispatch(ctx context.Context, line string, emit func(string)) (string, error) {
	start := time.Now()
	requestID := uuid.NewString()
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, "!"):
		reply := d.dispatchShell(ctx, strings.TrimPrefix(trimmed, "!"))
		emit(reply)
		d.record(line, reply, memory.CommandTypeShell, RouteShell, true, start)
		d.pushTrace(DispatchTrace{RequestID: requestID, Timestamp: start, Input: line, Route: RouteShell})
		return reply, nil

	case strings.HasPrefix(trimmed, "/"):
		reply, known := d.dispatchCommand(ctx, trimmed)
		emit(reply)
		d.record(line, reply, memory.CommandTypeCommand, RouteCommand, known, start)
		d.pushTrace(DispatchTrace{RequestID: requestID, Timestamp: start, Input: line, Route: RouteCommand})
		return reply, nil

	default:
		reply, route, trace, err := d.dispatchFreeText(ctx, trimmed, emit)
		trace.RequestID = requestID
		trace.Timestamp = start
		trace.Input = line
		trace.Route = route
		d.pushTrace(trace)
		d.record(line, reply, memory.CommandTypeText, route, err == nil, start)
		return reply, err
	}
}

func (d *Dispatcher) dispatchShell(ctx context.Context, cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "empty shell command"
	}
	result := d.shellExc.ExecuteWithAnalysis(ctx, cmd)
	if !result.Success {
		if result.ErrorAnalysis != "" {
			return fmt.Sprintf("%s\n%s", result.Output, result.ErrorAnalysis)
		}
		return result.Output
	}
	return result.Output
}

// dispatchCommand parses "/<name>[ <arg>]" and runs it through the
// CommandRegistry. known is false when the name is not registered.
func (d *Dispatcher) dispatchCommand(ctx context.Context, line string) (reply string, known bool) {
	name, args, _ := strings.Cut(line, " ")
	out, ok, err := d.commands.Execute(ctx, name, strings.TrimSpace(args))
	if !ok {
		return fmt.Sprintf("unknown command: %s (try /help)", name), false
	}
	if err != nil {
		return fmt.Sprintf("error: %v", err), true
	}
	return out, true
}

// dispatchFreeText implements §4.11 step 3: intent+pipeline, then template,
// then the tool-calling loop, then plain streamed chat.
func (d *Dispatcher) dispatchFreeText(ctx context.Context, text string, emit func(string)) (string, Route, DispatchTrace, error) {
	trace := DispatchTrace{}

	if d.tracker != nil {
		d.tracker.RecordEntities(d.tracker.ExtractEntities(text))
	}

	threshold := 0.6
	if d.cfg != nil {
		threshold = d.cfg.Intent.ValidationThreshold
	}

	var bestIntent intent.Match
	haveIntent := false
	if d.matcher != nil {
		if m, ok := d.matcher.BestMatch(text); ok {
			bestIntent = m
			haveIntent = true
			trace.IntentName = m.Intent.Name
			trace.IntentConfidence = m.Confidence
		}
	}

	// 3a: intent confidence clears the bar and the bridge can turn the raw
	// text into a pipeline plan.
	if haveIntent && bestIntent.Confidence >= threshold && d.bridge != nil {
		trace.BridgeAttempted = true
		plan, err := d.bridge.UnderstandAndGenerate(ctx, text)
		if err == nil {
			if verr := plan.Validate(); verr == nil {
				trace.BridgeApplicable = true
				out := d.shellExc.ExecuteWithAnalysis(ctx, plan.ToShellCommand())
				reply := out.Output
				if !out.Success && out.ErrorAnalysis != "" {
					reply = fmt.Sprintf("%s\n%s", out.Output, out.ErrorAnalysis)
				}
				emit(reply)
				return reply, RoutePipeline, trace, nil
			}
		}
		var notApplicable *pipeline.NotApplicableError
		if err != nil {
			trace.BridgeApplicable = false
			if asNotApplicable(err, &notApplicable) {
				trace.BridgeExplanation = notApplicable.Explanation
			}
		}
	}

	// 3b: a structured workflow template bound to the matched intent.
	if haveIntent && d.tmpl != nil {
		if tmpl, ok := d.tmpl.MatchIntent(bestIntent.Intent.Name); ok {
			client := d.chatClient()
			out, err := d.tmpl.Run(ctx,
				tmpl,
				func(ctx context.Context, name, argsJSON string) (string, error) {
					return d.toolExec.Registry.Execute(name, argsJSON)
				},
				func(ctx context.Context, prompt string) (string, error) {
					if client == nil {
						return "", fmt.Errorf("no llm client configured")
					}
					return client.Chat(ctx, []llm.Message{llm.NewUserMessage(prompt)})
				},
			)
			if err == nil {
				emit(out)
				return out, RouteTemplate, trace, nil
			}
		}
	}

	// 3c: the bounded iterative tool-calling loop.
	if d.cfg != nil && d.cfg.Features.ToolCallingEnabled && d.toolExec != nil {
		client := d.chatClient()
		if client != nil {
			history := d.recentHistory()
			out, _, err := d.toolExec.ExecuteIterative(ctx, client, history, text)
			if err == nil {
				emit(out)
				return out, RouteTools, trace, nil
			}
		}
	}

	// 3d: plain streamed chat, the fallback of last resort.
	client := d.chatClient()
	if client == nil {
		reply := "no LLM client configured"
		emit(reply)
		return reply, RouteChat, trace, fmt.Errorf("no llm client configured")
	}
	history := append(d.recentHistory(), llm.NewUserMessage(text))
	full, err := d.llmMgr.ChatStream(ctx, history, nil, func(chunk llm.StreamChunk) {
		if chunk.Text != "" {
			emit(chunk.Text)
		}
	})
	if err != nil {
		return "", RouteChat, trace, err
	}
	return full, RouteChat, trace, nil
}

// recentHistory turns the last turns of Memory into an LLM message list, so
// the tool loop and plain chat both see recent conversational context.
func (d *Dispatcher) recentHistory() []llm.Message {
	if d.mem == nil {
		return nil
	}
	turns := d.mem.Recent(10)
	out := make([]llm.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Speaker == memory.SpeakerUser {
			out = append(out, llm.NewUserMessage(t.Content))
		} else {
			out = append(out, llm.NewAssistantMessage(t.Content))
		}
	}
	return out
}

func (d *Dispatcher) record(input, reply string, kind memory.CommandType, route Route, success bool, start time.Time) {
	duration := time.Since(start)
	if d.logger != nil {
		d.logger.Log(input, kind, success, duration, reply)
	}
	if d.mem != nil {
		d.mem.RecordExchange(input, reply)
	}
	if d.mon != nil {
		now := time.Now()
		d.mon.OnMessage(monitor.MonitorMessage{Timestamp: now, MessageType: "USER", Content: input})
		d.mon.OnMessage(monitor.MonitorMessage{Timestamp: now, MessageType: "ASSISTANT", Route: string(route), Content: reply})
	}
}

func (d *Dispatcher) pushTrace(t DispatchTrace) {
	if d.mtr != nil {
		d.mtr.RecordDispatchRoute(string(t.Route))
	}
	d.traces = append(d.traces, t)
	if len(d.traces) > maxTraces {
		d.traces = d.traces[len(d.traces)-maxTraces:]
	}
}

// RecentTraces returns the n most recently recorded dispatch traces, newest
// first.
func (d *Dispatcher) RecentTraces(n int) []DispatchTrace {
	if n > len(d.traces) {
		n = len(d.traces)
	}
	out := make([]DispatchTrace, n)
	for i := 0; i < n; i++ {
		out[i] = d.traces[len(d.traces)-1-i]
	}
	return out
}

// asNotApplicable type-asserts err into *pipeline.NotApplicableError without
// importing errors.As at every call site.
func asNotApplicable(err error, target **pipeline.NotApplicableError) bool {
	if na, ok := err.(*pipeline.NotApplicableError); ok {
		*target = na
		return true
	}
	return false
}
