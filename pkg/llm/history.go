package llm

import (
	"os"
	"sync"
	"time"
)

// ChatHistory is a concurrency-safe linear conversation log: the short-term
// memory for a single conversation session, accumulating messages from every
// role (user, system, assistant, tool).
type ChatHistory struct {
	Summary  string    `json:"summary,omitempty"`
	Messages []Message `json:"messages"`
	mu       sync.RWMutex
}

// NewChatHistory initializes a fresh ChatHistory with an empty message set.
func NewChatHistory() *ChatHistory {
	return &ChatHistory{Messages: make([]Message, 0)}
}

// Add appends a new Message to the end of the conversation history.
func (h *ChatHistory) Add(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Messages = append(h.Messages, msg)
}

// GetMessages returns a copy of the current conversation history.
func (h *ChatHistory) GetMessages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make([]Message, len(h.Messages))
	copy(cp, h.Messages)
	return cp
}

func (h *ChatHistory) GetSummary() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Summary
}

func (h *ChatHistory) SetSummary(summary string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Summary = summary
}

// TruncateHistory keeps only the most recent N messages. A leading system
// message, if present, is always preserved.
func (h *ChatHistory) TruncateHistory(keep int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.Messages) <= keep {
		return
	}

	var sysMsg *Message
	if len(h.Messages) > 0 && h.Messages[0].Role == RoleSystem {
		tmp := h.Messages[0]
		sysMsg = &tmp
	}

	h.Messages = h.Messages[len(h.Messages)-keep:]

	if sysMsg != nil && (len(h.Messages) == 0 || h.Messages[0].Role != RoleSystem) {
		h.Messages = append([]Message{*sysMsg}, h.Messages...)
	}
}

// EnsureSystemMessage makes sure a system message with the given content is at
// the beginning of the history, replacing any existing leading system message.
func (h *ChatHistory) EnsureSystemMessage(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	newSys := Message{
		Role:      RoleSystem,
		Content:   []ContentBlock{{Type: BlockTypeText, Text: content}},
		Timestamp: time.Now().Unix(),
	}

	if len(h.Messages) > 0 && h.Messages[0].Role == RoleSystem {
		h.Messages[0] = newSys
	} else {
		h.Messages = append([]Message{newSys}, h.Messages...)
	}
}

// Save serializes the conversation history to a JSON file.
func (h *ChatHistory) Save(filePath string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// Load deserializes conversation history from a JSON file. A missing file is
// not an error: the history is left empty.
func (h *ChatHistory) Load(filePath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var result struct {
		Summary  string    `json:"summary"`
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		if err := json.Unmarshal(data, &result.Messages); err != nil {
			return err
		}
	}

	h.Summary = result.Summary
	h.Messages = result.Messages
	return nil
}
