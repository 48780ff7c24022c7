package memory

import (
	"strings"
	"testing"
	"time"
)

func TestLoggerRecordsAndReportsRecent(t *testing.T) {
	l := NewLogger(100)
	l.Log("/help", CommandTypeCommand, true, 50*time.Millisecond, "Help message")

	if l.Len() != 1 || l.IsEmpty() {
		t.Fatalf("expected one log entry")
	}
	recent := l.Recent(1)
	if recent[0].Command != "/help" || recent[0].CommandType != CommandTypeCommand || !recent[0].Success || recent[0].DurationMs != 50 {
		t.Fatalf("unexpected entry: %+v", recent[0])
	}
}

func TestLoggerRingBufferEvictsOldest(t *testing.T) {
	l := NewLogger(5)
	for i := 0; i < 10; i++ {
		l.Log("command", CommandTypeCommand, true, 10*time.Millisecond, "result")
	}
	if l.Len() != 5 {
		t.Fatalf("expected ring buffer capped at 5, got %d", l.Len())
	}
}

func TestLoggerSearch(t *testing.T) {
	l := NewLogger(100)
	l.Log("/help", CommandTypeCommand, true, 10*time.Millisecond, "Help")
	l.Log("!ls", CommandTypeShell, true, 20*time.Millisecond, "files")
	l.Log("/memory", CommandTypeCommand, true, 15*time.Millisecond, "Memory")

	if got := l.Search("help"); len(got) != 1 {
		t.Fatalf("expected 1 match for 'help', got %d", len(got))
	}
	if got := l.Search("notfound"); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestLoggerFilterByTypeAndSuccessFailed(t *testing.T) {
	l := NewLogger(100)
	l.Log("/help", CommandTypeCommand, true, 10*time.Millisecond, "ok")
	l.Log("!ls", CommandTypeShell, true, 20*time.Millisecond, "files")
	l.Log("cmd2", CommandTypeCommand, false, 15*time.Millisecond, "error")

	if got := l.FilterByType(CommandTypeCommand); len(got) != 2 {
		t.Fatalf("expected 2 command entries, got %d", len(got))
	}
	if got := l.Successful(); len(got) != 2 {
		t.Fatalf("expected 2 successful entries, got %d", len(got))
	}
	if got := l.Failed(); len(got) != 1 {
		t.Fatalf("expected 1 failed entry, got %d", len(got))
	}
}

func TestLoggerStats(t *testing.T) {
	l := NewLogger(100)
	l.Log("cmd1", CommandTypeCommand, true, 10*time.Millisecond, "ok")
	l.Log("cmd2", CommandTypeCommand, false, 20*time.Millisecond, "error")
	l.Log("cmd3", CommandTypeCommand, true, 30*time.Millisecond, "ok")

	stats := l.Stats()
	if stats.Total != 3 || stats.Success != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.AvgDurationMs != 20 || stats.MaxDurationMs != 30 || stats.MinDurationMs != 10 {
		t.Fatalf("unexpected duration stats: %+v", stats)
	}
	if rate := stats.SuccessRate(); rate < 66.6 || rate > 66.7 {
		t.Fatalf("unexpected success rate: %v", rate)
	}
}

func TestLoggerClear(t *testing.T) {
	l := NewLogger(100)
	l.Log("cmd", CommandTypeCommand, true, 10*time.Millisecond, "ok")
	l.Clear()
	if l.Len() != 0 || !l.IsEmpty() {
		t.Fatalf("expected logger to be empty after clear")
	}
}

func TestExecutionLogResultPreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 200)
	entry := NewExecutionLog("cmd", CommandTypeCommand, true, 10*time.Millisecond, long)
	if !strings.HasSuffix(entry.ResultPreview, "...") {
		t.Fatalf("expected truncated preview to end with ...")
	}
	if len([]rune(entry.ResultPreview)) != resultPreviewLimit+3 {
		t.Fatalf("expected preview of length 103, got %d", len([]rune(entry.ResultPreview)))
	}
}

func TestExecutionLogFormat(t *testing.T) {
	entry := NewExecutionLog("/help", CommandTypeCommand, true, 50*time.Millisecond, "Help message")
	formatted := entry.Format()
	if !strings.Contains(formatted, "✓") || !strings.Contains(formatted, "CMD") || !strings.Contains(formatted, "50ms") || !strings.Contains(formatted, "/help") {
		t.Fatalf("unexpected format: %s", formatted)
	}
}
