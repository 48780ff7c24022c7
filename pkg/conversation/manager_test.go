package conversation

import (
	"testing"
	"time"
)

func TestManagerCollectsParametersInOrder(t *testing.T) {
	m := NewConversationManager(time.Hour)

	if _, err := m.StartConversation("c1", "find_files"); err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if err := m.AddParameterSpec("c1", ParameterSpec{Name: "path", Required: true}); err != nil {
		t.Fatalf("AddParameterSpec path: %v", err)
	}
	if err := m.AddParameterSpec("c1", ParameterSpec{Name: "pattern", Required: true}); err != nil {
		t.Fatalf("AddParameterSpec pattern: %v", err)
	}

	ask, done, err := m.CollectParameter("c1", "path", "/tmp")
	if err != nil || done {
		t.Fatalf("collect path: ask=%+v done=%v err=%v", ask, done, err)
	}
	if ask.Name != "pattern" {
		t.Fatalf("expected to be asked for pattern next, got %q", ask.Name)
	}

	_, done, err = m.CollectParameter("c1", "pattern", "*.go")
	if err != nil || !done {
		t.Fatalf("collect pattern: done=%v err=%v", done, err)
	}

	conv, ok := m.Get("c1")
	if !ok || conv.State.Kind != StateValidating {
		t.Fatalf("expected Validating, got %+v (ok=%v)", conv.State, ok)
	}
}

func TestManagerRejectsInvalidValueAndTracksRetries(t *testing.T) {
	m := NewConversationManager(time.Hour)
	m.StartConversation("c1", "set_limit")
	m.AddParameterSpec("c1", ParameterSpec{
		Name:     "count",
		Required: true,
		Rules:    []ValidationRule{{Kind: RuleIntRange, Min: 1, Max: 10}},
	})

	if _, _, err := m.CollectParameter("c1", "count", "not-a-number"); err == nil {
		t.Fatalf("expected validation error")
	}
	conv, _ := m.Get("c1")
	if conv.State.Kind != StateCollectingParameters || conv.State.RetryCount != 1 {
		t.Fatalf("expected retry_count 1, got %+v", conv.State)
	}

	if _, _, err := m.CollectParameter("c1", "count", "5"); err != nil {
		t.Fatalf("valid value should be accepted: %v", err)
	}
}

func TestManagerFullLifecycleAndCleanup(t *testing.T) {
	m := NewConversationManager(time.Hour)
	m.StartConversation("c1", "delete_file")
	m.AddParameterSpec("c1", ParameterSpec{Name: "path", Required: true})
	if _, done, err := m.CollectParameter("c1", "path", "/tmp/x"); err != nil || !done {
		t.Fatalf("collect: done=%v err=%v", done, err)
	}

	if err := m.MarkValidated("c1"); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	if err := m.ConfirmExecution("c1", true); err != nil {
		t.Fatalf("ConfirmExecution: %v", err)
	}
	if err := m.CompleteExecution("c1", true, "deleted"); err != nil {
		t.Fatalf("CompleteExecution: %v", err)
	}

	conv, _ := m.Get("c1")
	if conv.State.Kind != StateCompleted || !conv.State.Success {
		t.Fatalf("expected Completed/success, got %+v", conv.State)
	}

	if n := m.ActiveCount(); n != 0 {
		t.Fatalf("expected 0 active conversations, got %d", n)
	}
	if n := m.CleanupCompleted(); n != 1 {
		t.Fatalf("expected to clean up 1 conversation, got %d", n)
	}
	if _, ok := m.Get("c1"); ok {
		t.Fatalf("c1 should have been removed")
	}
}

func TestManagerCheckTimeouts(t *testing.T) {
	m := NewConversationManager(time.Millisecond)
	m.StartConversation("c1", "whatever")

	time.Sleep(5 * time.Millisecond)
	timedOut := m.CheckTimeouts()
	if len(timedOut) != 1 || timedOut[0] != "c1" {
		t.Fatalf("expected c1 to time out, got %v", timedOut)
	}

	conv, _ := m.Get("c1")
	if conv.State.Kind != StateTimeout {
		t.Fatalf("expected Timeout state, got %+v", conv.State)
	}
}

func TestManagerCancelConversation(t *testing.T) {
	m := NewConversationManager(time.Hour)
	m.StartConversation("c1", "whatever")
	if err := m.CancelConversation("c1", "user said stop"); err != nil {
		t.Fatalf("CancelConversation: %v", err)
	}
	conv, _ := m.Get("c1")
	if conv.State.Kind != StateCancelled || conv.State.Reason != "user said stop" {
		t.Fatalf("got %+v", conv.State)
	}
}
