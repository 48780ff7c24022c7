package conversation

import "testing"

func TestTransitionHappyPath(t *testing.T) {
	s := State{Kind: StateInitializing}

	s, err := Transition(s, StateEvent{Kind: EventIntentRecognized})
	if err != nil || s.Kind != StateCollectingParameters {
		t.Fatalf("IntentRecognized: got %v, err %v", s, err)
	}

	s, err = Transition(s, StateEvent{Kind: EventParameterProvided, ParamName: "path"})
	if err != nil || s.Kind != StateCollectingParameters || s.CurrentParam != "path" {
		t.Fatalf("ParameterProvided: got %+v, err %v", s, err)
	}

	s, err = Transition(s, StateEvent{Kind: EventAllParametersCollected})
	if err != nil || s.Kind != StateValidating {
		t.Fatalf("AllParametersCollected: got %v, err %v", s, err)
	}

	s, err = Transition(s, StateEvent{Kind: EventValidationPassed})
	if err != nil || s.Kind != StateConfirming {
		t.Fatalf("ValidationPassed: got %v, err %v", s, err)
	}

	s, err = Transition(s, StateEvent{Kind: EventUserConfirmed})
	if err != nil || s.Kind != StateExecuting {
		t.Fatalf("UserConfirmed: got %v, err %v", s, err)
	}

	s, err = Transition(s, StateEvent{Kind: EventExecutionCompleted, Success: true, Message: "done"})
	if err != nil || s.Kind != StateCompleted || !s.Success || s.Message != "done" {
		t.Fatalf("ExecutionCompleted: got %+v, err %v", s, err)
	}
	if !s.IsTerminal() {
		t.Fatalf("Completed should be terminal")
	}
}

func TestTransitionRetryLimit(t *testing.T) {
	s := State{Kind: StateValidating, CurrentParam: "count", RetryCount: 0}

	s, err := Transition(s, StateEvent{Kind: EventValidationFailed, Reason: "bad"})
	if err != nil || s.Kind != StateCollectingParameters || s.RetryCount != 1 {
		t.Fatalf("1st failure: got %+v, err %v", s, err)
	}

	s.Kind = StateValidating
	s, err = Transition(s, StateEvent{Kind: EventValidationFailed, Reason: "bad"})
	if err != nil || s.Kind != StateCollectingParameters || s.RetryCount != 2 {
		t.Fatalf("2nd failure: got %+v, err %v", s, err)
	}

	s.Kind = StateValidating
	s, err = Transition(s, StateEvent{Kind: EventValidationFailed, Reason: "bad"})
	if err != nil || s.Kind != StateCancelled || s.Reason != "Too many invalid attempts" {
		t.Fatalf("3rd failure should cancel: got %+v, err %v", s, err)
	}
}

func TestTransitionUserCancelledFromAnyNonTerminalState(t *testing.T) {
	for _, kind := range []StateKind{
		StateInitializing, StateCollectingParameters, StateValidating,
		StateConfirming, StateExecuting,
	} {
		s, err := Transition(State{Kind: kind}, StateEvent{Kind: EventUserCancelled, Reason: "nevermind"})
		if err != nil || s.Kind != StateCancelled || s.Reason != "nevermind" {
			t.Fatalf("from %s: got %+v, err %v", kind, s, err)
		}
	}
}

func TestTransitionTimeoutFromAnyNonTerminalState(t *testing.T) {
	s, err := Transition(State{Kind: StateConfirming}, StateEvent{Kind: EventTimeout})
	if err != nil || s.Kind != StateTimeout {
		t.Fatalf("got %+v, err %v", s, err)
	}
}

func TestTransitionInvalidPairLeavesStateUnchanged(t *testing.T) {
	s := State{Kind: StateConfirming}
	got, err := Transition(s, StateEvent{Kind: EventParameterProvided, ParamName: "x"})
	if err == nil {
		t.Fatalf("expected InvalidTransitionError")
	}
	if _, ok := err.(*InvalidTransitionError); !ok {
		t.Fatalf("expected *InvalidTransitionError, got %T", err)
	}
	if got != s {
		t.Fatalf("state should be unchanged: got %+v, want %+v", got, s)
	}
}

func TestTransitionTerminalStatesRejectEverythingButNothing(t *testing.T) {
	for _, kind := range []StateKind{StateCompleted, StateCancelled, StateTimeout} {
		s := State{Kind: kind}
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", kind)
		}
		_, err := Transition(s, StateEvent{Kind: EventUserCancelled, Reason: "x"})
		if err == nil {
			t.Fatalf("%s should reject further events", kind)
		}
	}
}
