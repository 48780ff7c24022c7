package tools

import (
	"context"
	"fmt"
	"sync"

	"realconsole/pkg/llm"
)

// Executor drives the bounded iterative tool-calling loop (§4.3).
type Executor struct {
	Registry          *Registry
	MaxIterations     int
	MaxToolsPerRound  int
}

// NewExecutor builds an Executor with the §4.3 defaults (5 iterations, 3
// tools per round).
func NewExecutor(reg *Registry) *Executor {
	return &Executor{Registry: reg, MaxIterations: 5, MaxToolsPerRound: 3}
}

// ExecuteIterative appends userPrompt as a User message, then repeatedly asks
// the client for a tool-calling completion: a final-text response ends the
// loop; a tool-calls response executes up to MaxToolsPerRound calls (FIFO,
// in parallel) and feeds their results back as Tool messages, in call order.
func (e *Executor) ExecuteIterative(ctx context.Context, client llm.Client, messages []llm.Message, userPrompt string) (string, []llm.Message, error) {
	maxIterations := e.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 5
	}
	maxTools := e.MaxToolsPerRound
	if maxTools <= 0 {
		maxTools = 3
	}

	history := append(append([]llm.Message{}, messages...), llm.NewUserMessage(userPrompt))
	schemas := e.Registry.FunctionSchemas()

	for iter := 0; iter < maxIterations; iter++ {
		result, err := client.ChatWithTools(ctx, history, schemas)
		if err != nil {
			return "", history, err
		}

		if result.IsFinal || len(result.ToolCalls) == 0 {
			history = append(history, llm.NewAssistantMessage(result.Text))
			return result.Text, history, nil
		}

		calls := result.ToolCalls
		if len(calls) > maxTools {
			calls = calls[:maxTools]
		}

		assistantMsg := llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
		history = append(history, assistantMsg)

		results := e.runParallel(calls)
		for _, tc := range calls {
			history = append(history, llm.NewToolMessage(tc.ID, results[tc.ID]))
		}
	}

	return "", history, fmt.Errorf("maximum tool-iteration count reached")
}

// runParallel executes every call concurrently, returning each call's result
// (or error string) keyed by its ID. An unknown tool, a handler error, or an
// args-parse failure all surface as an error string rather than aborting —
// the LLM gets a chance to recover on the next iteration.
func (e *Executor) runParallel(calls []llm.ToolCall) map[string]string {
	results := make(map[string]string, len(calls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tc := range calls {
		wg.Add(1)
		go func(tc llm.ToolCall) {
			defer wg.Done()
			out, err := e.Registry.Execute(tc.Function.Name, tc.Function.Arguments)
			mu.Lock()
			if err != nil {
				results[tc.ID] = fmt.Sprintf("error: %v", err)
			} else {
				results[tc.ID] = out
			}
			mu.Unlock()
		}(tc)
	}
	wg.Wait()
	return results
}
