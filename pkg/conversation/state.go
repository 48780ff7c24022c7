// Package conversation implements the Conversation State Machine (C8) and
// Manager (C9): a per-conversation parameter-collection and confirmation
// flow layered over a strict state machine.
package conversation

import "fmt"

// StateKind tags the concrete variant of a State.
type StateKind string

const (
	StateInitializing         StateKind = "Initializing"
	StateCollectingParameters StateKind = "CollectingParameters"
	StateValidating           StateKind = "Validating"
	StateConfirming           StateKind = "Confirming"
	StateExecuting            StateKind = "Executing"
	StateCompleted            StateKind = "Completed"
	StateCancelled            StateKind = "Cancelled"
	StateTimeout              StateKind = "Timeout"
)

// State is the conversation's current position. Retry counters live in the
// state payload, not as hidden reflexive-edge counters (see the state
// machine note in SPEC_FULL.md §4).
type State struct {
	Kind StateKind

	// CollectingParameters
	CurrentParam string
	RetryCount   int

	// Completed
	Success bool
	Message string

	// Cancelled
	Reason string
}

func (s State) IsTerminal() bool {
	switch s.Kind {
	case StateCompleted, StateCancelled, StateTimeout:
		return true
	default:
		return false
	}
}

// EventKind tags the concrete variant of a StateEvent.
type EventKind string

const (
	EventIntentRecognized      EventKind = "IntentRecognized"
	EventParameterProvided     EventKind = "ParameterProvided"
	EventAllParametersCollected EventKind = "AllParametersCollected"
	EventValidationPassed      EventKind = "ValidationPassed"
	EventValidationFailed      EventKind = "ValidationFailed"
	EventUserConfirmed         EventKind = "UserConfirmed"
	EventUserRejected          EventKind = "UserRejected"
	EventExecutionCompleted    EventKind = "ExecutionCompleted"
	EventUserCancelled         EventKind = "UserCancelled"
	EventTimeout               EventKind = "Timeout"
)

// StateEvent drives a transition. Payload fields are populated per EventKind.
type StateEvent struct {
	Kind EventKind

	ParamName string // ParameterProvided
	Reason    string // ValidationFailed, UserCancelled
	Success   bool   // ExecutionCompleted
	Message   string // ExecutionCompleted
}

// maxRetries is the per-parameter invalid-attempt budget before the
// conversation is cancelled outright (§4.6 / §8 scenario 5).
const maxRetries = 3

// InvalidTransitionError is returned for any event/state pair the machine
// doesn't define; the state is left unchanged.
type InvalidTransitionError struct {
	State State
	Event StateEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %s in state %s", e.Event.Kind, e.State.Kind)
}

// Transition applies event to state, returning the new state or an
// InvalidTransitionError (state unchanged) if the pair isn't defined.
func Transition(state State, event StateEvent) (State, error) {
	// Universal escapes from any non-terminal state.
	if !state.IsTerminal() {
		switch event.Kind {
		case EventUserCancelled:
			return State{Kind: StateCancelled, Reason: event.Reason}, nil
		case EventTimeout:
			return State{Kind: StateTimeout}, nil
		}
	}

	switch state.Kind {
	case StateInitializing:
		if event.Kind == EventIntentRecognized {
			return State{Kind: StateCollectingParameters}, nil
		}
		if event.Kind == EventAllParametersCollected {
			return State{Kind: StateValidating}, nil
		}

	case StateCollectingParameters:
		switch event.Kind {
		case EventParameterProvided:
			return State{
				Kind:         StateCollectingParameters,
				CurrentParam: event.ParamName,
				RetryCount:   state.RetryCount,
			}, nil
		case EventAllParametersCollected:
			return State{Kind: StateValidating}, nil
		case EventValidationFailed:
			retries := state.RetryCount + 1
			if retries >= maxRetries {
				return State{Kind: StateCancelled, Reason: "Too many invalid attempts"}, nil
			}
			return State{
				Kind:         StateCollectingParameters,
				CurrentParam: state.CurrentParam,
				RetryCount:   retries,
			}, nil
		}

	case StateValidating:
		switch event.Kind {
		case EventValidationPassed:
			return State{Kind: StateConfirming}, nil
		case EventValidationFailed:
			retries := state.RetryCount + 1
			if retries >= maxRetries {
				return State{Kind: StateCancelled, Reason: "Too many invalid attempts"}, nil
			}
			return State{
				Kind:         StateCollectingParameters,
				CurrentParam: state.CurrentParam,
				RetryCount:   retries,
			}, nil
		}

	case StateConfirming:
		switch event.Kind {
		case EventUserConfirmed:
			return State{Kind: StateExecuting}, nil
		case EventUserRejected:
			return State{Kind: StateCancelled, Reason: "rejected by user"}, nil
		}

	case StateExecuting:
		if event.Kind == EventExecutionCompleted {
			return State{Kind: StateCompleted, Success: event.Success, Message: event.Message}, nil
		}
	}

	return state, &InvalidTransitionError{State: state, Event: event}
}
