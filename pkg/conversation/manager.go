package conversation

import (
	"fmt"
	"sync"
	"time"
)

// Conversation is one tracked parameter-collection/confirmation flow.
type Conversation struct {
	ID        string
	Intent    string
	State     State
	Specs     map[string]ParameterSpec
	Pending   []string // remaining required parameter names, in spec order
	Values    map[string]ParameterValue
	StartedAt time.Time
	UpdatedAt time.Time
}

// allCollected reports whether every pending parameter has a
// value, i.e. Pending is empty.
func (c *Conversation) allCollected() bool {
	return len(c.Pending) == 0
}

func (c *Conversation) removePending(name string) {
	for i, n := range c.Pending {
		if n == name {
			c.Pending = append(c.Pending[:i], c.Pending[i+1:]...)
			return
		}
	}
}

// ConversationManager tracks many concurrent Conversations by ID (C9),
// driving each through the state machine in state.go.
type ConversationManager struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	timeout       time.Duration
}

// NewConversationManager builds a manager with the given per-conversation
// idle timeout (checked by CheckTimeouts, not enforced automatically).
func NewConversationManager(timeout time.Duration) *ConversationManager {
	return &ConversationManager{
		conversations: make(map[string]*Conversation),
		timeout:       timeout,
	}
}

// StartConversation begins tracking a new conversation for the given intent,
// transitioning Initializing -> CollectingParameters.
func (m *ConversationManager) StartConversation(id, intentName string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[id]; exists {
		return nil, fmt.Errorf("conversation %q already exists", id)
	}

	state, err := Transition(State{Kind: StateInitializing}, StateEvent{Kind: EventIntentRecognized})
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	conv := &Conversation{
		ID:        id,
		Intent:    intentName,
		State:     state,
		Specs:     make(map[string]ParameterSpec),
		Values:    make(map[string]ParameterValue),
		StartedAt: now,
		UpdatedAt: now,
	}
	m.conversations[id] = conv
	return conv, nil
}

// AddParameterSpec registers one parameter a conversation must collect
// before it can proceed to Validating. Order of calls determines Pending
// order.
func (m *ConversationManager) AddParameterSpec(id string, spec ParameterSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %q not found", id)
	}
	conv.Specs[spec.Name] = spec
	if spec.Required {
		conv.Pending = append(conv.Pending, spec.Name)
	}
	conv.UpdatedAt = nowFunc()
	return nil
}

// CollectParameter validates a provided value against its spec, stores it,
// and advances the state machine; an invalid value is not stored. On success it returns either the next
// AskForParameter or (ok=true, ask=zero) once every parameter has been
// collected.
func (m *ConversationManager) CollectParameter(id, name, value string) (AskForParameter, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return AskForParameter{}, false, fmt.Errorf("conversation %q not found", id)
	}

	spec, ok := conv.Specs[name]
	if !ok {
		return AskForParameter{}, false, fmt.Errorf("unknown parameter %q", name)
	}

	if err := spec.Validate(value); err != nil {
		state, terr := Transition(conv.State, StateEvent{Kind: EventValidationFailed, Reason: err.Error()})
		if terr != nil {
			return AskForParameter{}, false, terr
		}
		conv.State = state
		conv.UpdatedAt = nowFunc()
		return AskForParameter{}, false, fmt.Errorf("validation failed for %q: %w", name, err)
	}

	conv.Values[name] = ParameterValue{Name: name, Value: value}
	conv.removePending(name)

	var event StateEvent
	if conv.allCollected() {
		event = StateEvent{Kind: EventAllParametersCollected}
	} else {
		event = StateEvent{Kind: EventParameterProvided, ParamName: name}
	}

	state, err := Transition(conv.State, event)
	if err != nil {
		return AskForParameter{}, false, err
	}
	conv.State = state
	conv.UpdatedAt = nowFunc()

	if conv.allCollected() {
		return AskForParameter{}, true, nil
	}

	next := conv.Pending[0]
	nextSpec := conv.Specs[next]
	return AskForParameter{
		Name:        nextSpec.Name,
		Description: nextSpec.Description,
		Hint:        nextSpec.Hint,
		Default:     nextSpec.Default,
	}, false, nil
}

// MarkValidated moves a conversation from Validating to Confirming once its
// caller has run whatever cross-parameter checks it needs beyond per-field
// ValidationRules.
func (m *ConversationManager) MarkValidated(id string) error {
	return m.applyEvent(id, StateEvent{Kind: EventValidationPassed})
}

// ConfirmExecution records the user's yes/no answer to the confirmation
// prompt.
func (m *ConversationManager) ConfirmExecution(id string, yes bool) error {
	if yes {
		return m.applyEvent(id, StateEvent{Kind: EventUserConfirmed})
	}
	return m.applyEvent(id, StateEvent{Kind: EventUserRejected})
}

// CompleteExecution records the outcome of running the confirmed action.
func (m *ConversationManager) CompleteExecution(id string, success bool, message string) error {
	return m.applyEvent(id, StateEvent{Kind: EventExecutionCompleted, Success: success, Message: message})
}

// CancelConversation cancels a conversation from any non-terminal state.
func (m *ConversationManager) CancelConversation(id, reason string) error {
	return m.applyEvent(id, StateEvent{Kind: EventUserCancelled, Reason: reason})
}

func (m *ConversationManager) applyEvent(id string, event StateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %q not found", id)
	}
	state, err := Transition(conv.State, event)
	if err != nil {
		return err
	}
	conv.State = state
	conv.UpdatedAt = nowFunc()
	return nil
}

// CheckTimeouts transitions every non-terminal conversation idle longer than
// the manager's timeout into Timeout, returning the IDs affected.
func (m *ConversationManager) CheckTimeouts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timeout <= 0 {
		return nil
	}

	now := nowFunc()
	var timedOut []string
	for id, conv := range m.conversations {
		if conv.State.IsTerminal() {
			continue
		}
		if now.Sub(conv.UpdatedAt) < m.timeout {
			continue
		}
		state, err := Transition(conv.State, StateEvent{Kind: EventTimeout})
		if err != nil {
			continue
		}
		conv.State = state
		conv.UpdatedAt = now
		timedOut = append(timedOut, id)
	}
	return timedOut
}

// CleanupCompleted drops every conversation in a terminal state, returning
// how many were removed.
func (m *ConversationManager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, conv := range m.conversations {
		if conv.State.IsTerminal() {
			delete(m.conversations, id)
			removed++
		}
	}
	return removed
}

// ActiveCount returns the number of tracked conversations not yet terminal.
func (m *ConversationManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, conv := range m.conversations {
		if !conv.State.IsTerminal() {
			n++
		}
	}
	return n
}

// Get returns a snapshot copy of a tracked conversation's state.
func (m *ConversationManager) Get(id string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return *conv, true
}

// nowFunc is a var so tests can stub out the clock.
var nowFunc = time.Now
