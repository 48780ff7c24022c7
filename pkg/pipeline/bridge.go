package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"realconsole/pkg/llm"
)

const systemPrompt = `You translate a natural-language file-system request into a JSON pipeline plan.

Available operations:
- FindFiles{path, pattern}: find files matching a glob pattern under path
- ListFiles{path}: list files under path
- DiskUsage{path}: report per-entry disk usage under path
- SortFiles{field, direction}: field in {size, time, name}, direction in {asc, desc}
- LimitFiles{count}: keep only the first N results
- FilterFiles{condition}: keep only lines matching condition

Mapping rules for common qualifiers:
- "largest"/"最大" -> SortFiles{field: size, direction: desc}
- "smallest"/"最小" -> SortFiles{field: size, direction: asc}
- "newest"/"最新" -> SortFiles{field: time, direction: desc}
- "oldest"/"最旧" -> SortFiles{field: time, direction: asc}

Respond with exactly one JSON object:
{"applicable": bool, "explanation": string, "base_operation": {...} or null, "modifiers": [...]}
If the request cannot be expressed as a pipeline of these operations, set applicable to false
and explain why in "explanation".`

// rawOp is the bridge's wire shape for one operation, as emitted by the LLM.
type rawOp struct {
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty"`
	Count     int    `json:"count,omitempty"`
	Condition string `json:"condition,omitempty"`
}

type bridgeResponse struct {
	Applicable    bool    `json:"applicable"`
	Explanation   string  `json:"explanation"`
	BaseOperation *rawOp  `json:"base_operation"`
	Modifiers     []rawOp `json:"modifiers"`
}

// NotApplicableError carries the LLM's explanation for why a request can't
// be expressed as a pipeline.
type NotApplicableError struct {
	Explanation string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("not applicable: %s", e.Explanation)
}

// Bridge turns natural-language requests into validated ExecutionPlans by
// asking an LLM client to classify and structure the request (C7).
type Bridge struct {
	Client llm.Client
}

// NewBridge builds a Bridge over the given client.
func NewBridge(client llm.Client) *Bridge {
	return &Bridge{Client: client}
}

// UnderstandAndGenerate sends the fixed system prompt plus userInput, parses
// the JSON reply, and assembles a validated ExecutionPlan. Unknown modifier
// types are silently skipped; an unknown base operation type is an error.
func (b *Bridge) UnderstandAndGenerate(ctx context.Context, userInput string) (ExecutionPlan, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(userInput),
	}

	text, err := b.Client.Chat(ctx, messages)
	if err != nil {
		return ExecutionPlan{}, err
	}

	var resp bridgeResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return ExecutionPlan{}, fmt.Errorf("failed to parse bridge response: %w", err)
	}

	if !resp.Applicable {
		return ExecutionPlan{}, &NotApplicableError{Explanation: resp.Explanation}
	}

	plan, err := b.toExecutionPlan(resp)
	if err != nil {
		return ExecutionPlan{}, err
	}

	if err := plan.ValidateSafety(); err != nil {
		return ExecutionPlan{}, err
	}
	return plan, nil
}

// toExecutionPlan assembles operations in order base_operation then each
// modifiers[i], applying the §4.1 llm_bridge defaults: sort field defaults
// to "" (Default), sort direction defaults to "desc", limit count defaults
// to 10, filter condition defaults to "".
func (b *Bridge) toExecutionPlan(resp bridgeResponse) (ExecutionPlan, error) {
	var plan ExecutionPlan

	if resp.BaseOperation == nil {
		return plan, fmt.Errorf("bridge response marked applicable but has no base_operation")
	}
	base, err := toBaseOp(*resp.BaseOperation)
	if err != nil {
		return plan, err
	}
	plan.Operations = append(plan.Operations, base)

	for _, mod := range resp.Modifiers {
		op, ok := toModifierOp(mod)
		if !ok {
			continue // unknown modifier types are silently ignored
		}
		plan.Operations = append(plan.Operations, op)
	}

	return plan, nil
}

func toBaseOp(raw rawOp) (BaseOperation, error) {
	switch OpKind(raw.Type) {
	case OpFindFiles:
		return BaseOperation{Kind: OpFindFiles, Path: raw.Path, Pattern: raw.Pattern}, nil
	case OpListFiles:
		return BaseOperation{Kind: OpListFiles, Path: raw.Path}, nil
	case OpDiskUsage:
		return BaseOperation{Kind: OpDiskUsage, Path: raw.Path}, nil
	default:
		return BaseOperation{}, fmt.Errorf("unknown base operation type: %s", raw.Type)
	}
}

func toModifierOp(raw rawOp) (BaseOperation, bool) {
	switch OpKind(raw.Type) {
	case OpSortFiles:
		direction := raw.Direction
		if direction == "" {
			direction = "desc"
		}
		return BaseOperation{Kind: OpSortFiles, Field: raw.Field, Direction: direction}, true
	case OpLimitFiles:
		count := raw.Count
		if count == 0 {
			count = 10
		}
		return BaseOperation{Kind: OpLimitFiles, Count: count}, true
	case OpFilterFiles:
		return BaseOperation{Kind: OpFilterFiles, Condition: raw.Condition}, true
	default:
		return BaseOperation{}, false
	}
}

// extractJSON finds the first top-level JSON object in s, tolerating a
// fenced code block or leading prose around it.
func extractJSON(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}
