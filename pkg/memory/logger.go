// Package memory implements the Execution Logger and turn Memory (C14):
// a bounded ring of executed-command entries and a bounded ring of
// conversation turns, both searchable by keyword and filterable by type.
package memory

import (
	"fmt"
	"strings"
	"time"
)

// CommandType tags what kind of input produced an ExecutionLog entry.
type CommandType string

const (
	CommandTypeCommand CommandType = "Command"
	CommandTypeShell    CommandType = "Shell"
	CommandTypeText     CommandType = "Text"
)

func (c CommandType) label() string {
	switch c {
	case CommandTypeCommand:
		return "CMD"
	case CommandTypeShell:
		return "SHELL"
	default:
		return "TEXT"
	}
}

const resultPreviewLimit = 100

// ExecutionLog is one recorded command execution.
type ExecutionLog struct {
	Timestamp     time.Time
	Command       string
	CommandType   CommandType
	Success       bool
	DurationMs    int64
	ResultPreview string
}

// NewExecutionLog builds an ExecutionLog, truncating result to 100 runes
// (not bytes, so a truncation never splits a multi-byte character) and
// marking truncation with a trailing "...".
func NewExecutionLog(command string, kind CommandType, success bool, duration time.Duration, result string) ExecutionLog {
	runes := []rune(result)
	preview := result
	if len(runes) > resultPreviewLimit {
		preview = string(runes[:resultPreviewLimit]) + "..."
	}
	return ExecutionLog{
		Timestamp:     time.Now(),
		Command:       command,
		CommandType:   kind,
		Success:       success,
		DurationMs:    duration.Milliseconds(),
		ResultPreview: preview,
	}
}

// Format renders a one-line summary, e.g. "[15:04:05] ✓ SHELL   |    12ms | ls -la".
func (l ExecutionLog) Format() string {
	status := "✗"
	if l.Success {
		status = "✓"
	}
	return fmt.Sprintf("[%s] %s %-7s | %5dms | %s",
		l.Timestamp.Format("15:04:05"), status, l.CommandType.label(), l.DurationMs, l.Command)
}

// FormatDetailed renders a multi-line summary including the result preview.
func (l ExecutionLog) FormatDetailed() string {
	status := "✓ success"
	if !l.Success {
		status = "✗ failed"
	}
	return fmt.Sprintf("[%s] %s - %s\n  type: %s | duration: %dms\n  command: %s\n  result: %s",
		l.Timestamp.Format("2006-01-02 15:04:05"), status, l.CommandType.label(),
		l.CommandType.label(), l.DurationMs, l.Command, l.ResultPreview)
}

// Stats summarizes a set of ExecutionLog entries.
type Stats struct {
	Total         int
	Success       int
	Failed        int
	AvgDurationMs float64
	MaxDurationMs int64
	MinDurationMs int64
}

// SuccessRate is Success/Total as a 0-100 percentage, 0 when empty.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100
}

// Logger is a bounded ring (oldest entries drop first) of ExecutionLog
// entries, used for audit trails, performance analysis, and debugging.
type Logger struct {
	logs    []ExecutionLog
	maxLogs int
}

// NewLogger builds a Logger retaining at most maxLogs entries.
func NewLogger(maxLogs int) *Logger {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &Logger{maxLogs: maxLogs}
}

// Log appends an entry, evicting the oldest if at capacity.
func (l *Logger) Log(command string, kind CommandType, success bool, duration time.Duration, result string) {
	entry := NewExecutionLog(command, kind, success, duration, result)
	if len(l.logs) >= l.maxLogs {
		l.logs = l.logs[1:]
	}
	l.logs = append(l.logs, entry)
}

// Recent returns the n most recent entries, newest first.
func (l *Logger) Recent(n int) []ExecutionLog {
	if n > len(l.logs) {
		n = len(l.logs)
	}
	out := make([]ExecutionLog, n)
	for i := 0; i < n; i++ {
		out[i] = l.logs[len(l.logs)-1-i]
	}
	return out
}

// Search returns every entry whose command or result preview contains
// keyword, case-insensitively.
func (l *Logger) Search(keyword string) []ExecutionLog {
	needle := strings.ToLower(keyword)
	var out []ExecutionLog
	for _, e := range l.logs {
		if strings.Contains(strings.ToLower(e.Command), needle) || strings.Contains(strings.ToLower(e.ResultPreview), needle) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByType returns every entry of the given CommandType.
func (l *Logger) FilterByType(kind CommandType) []ExecutionLog {
	var out []ExecutionLog
	for _, e := range l.logs {
		if e.CommandType == kind {
			out = append(out, e)
		}
	}
	return out
}

// Successful returns every successful entry.
func (l *Logger) Successful() []ExecutionLog {
	var out []ExecutionLog
	for _, e := range l.logs {
		if e.Success {
			out = append(out, e)
		}
	}
	return out
}

// Failed returns every failed entry.
func (l *Logger) Failed() []ExecutionLog {
	var out []ExecutionLog
	for _, e := range l.logs {
		if !e.Success {
			out = append(out, e)
		}
	}
	return out
}

// All returns every retained entry, oldest first.
func (l *Logger) All() []ExecutionLog {
	out := make([]ExecutionLog, len(l.logs))
	copy(out, l.logs)
	return out
}

// Stats computes aggregate statistics over every retained entry.
func (l *Logger) Stats() Stats {
	return computeStats(l.logs)
}

// StatsByType computes aggregate statistics restricted to one CommandType.
func (l *Logger) StatsByType(kind CommandType) Stats {
	return computeStats(l.FilterByType(kind))
}

func computeStats(logs []ExecutionLog) Stats {
	if len(logs) == 0 {
		return Stats{}
	}
	var total, success int
	var sumDuration, maxDuration int64
	minDuration := logs[0].DurationMs
	for _, e := range logs {
		total++
		if e.Success {
			success++
		}
		sumDuration += e.DurationMs
		if e.DurationMs > maxDuration {
			maxDuration = e.DurationMs
		}
		if e.DurationMs < minDuration {
			minDuration = e.DurationMs
		}
	}
	return Stats{
		Total:         total,
		Success:       success,
		Failed:        total - success,
		AvgDurationMs: float64(sumDuration) / float64(total),
		MaxDurationMs: maxDuration,
		MinDurationMs: minDuration,
	}
}

// Clear drops every retained entry.
func (l *Logger) Clear() {
	l.logs = nil
}

// Len reports how many entries are currently retained.
func (l *Logger) Len() int { return len(l.logs) }

// IsEmpty reports whether no entries are retained.
func (l *Logger) IsEmpty() bool { return len(l.logs) == 0 }
