package service

import (
	"github.com/noah-isme/edubot-api/internal/models"
)

const defaultHistoryLimit = 11

// ChatHistory keeps the system message plus the most recent turns for the conversational path.
type ChatHistory struct {
	system   string
	messages []models.ChatMessage
	limit    int
}

// NewChatHistory creates an empty history bounded to limit turns besides the system message.
// A turn is one user message and its assistant reply.
func NewChatHistory(limit int) *ChatHistory {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &ChatHistory{limit: limit}
}

// Initialized reports whether a system instruction has been set.
func (h *ChatHistory) Initialized() bool {
	return h.system != ""
}

// Start sets the system instruction and clears previous messages.
func (h *ChatHistory) Start(system string) {
	h.system = system
	h.messages = nil
}

// System returns the current system instruction.
func (h *ChatHistory) System() string {
	return h.system
}

// Append records one exchanged pair and drops the oldest turns beyond the limit.
func (h *ChatHistory) Append(user, assistant string) {
	h.messages = append(h.messages,
		models.ChatMessage{Role: models.RoleUser, Content: user},
		models.ChatMessage{Role: models.RoleAssistant, Content: assistant},
	)
	h.trim()
}

// trim keeps at most limit turns and never leaves an assistant message first.
func (h *ChatHistory) trim() {
	start := 0
	if extra := len(h.messages) - 2*h.limit; extra > 0 {
		start = extra
	}
	for start < len(h.messages) && h.messages[start].Role != models.RoleUser {
		start++
	}
	if start > 0 {
		h.messages = append([]models.ChatMessage(nil), h.messages[start:]...)
	}
}

// Messages returns a copy of the retained non-system messages, oldest first.
func (h *ChatHistory) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), h.messages...)
}

// Snapshot returns the system message followed by the retained messages.
func (h *ChatHistory) Snapshot() []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(h.messages)+1)
	if h.system != "" {
		out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: h.system})
	}
	return append(out, h.messages...)
}

// Restore loads a snapshot produced by Snapshot.
func (h *ChatHistory) Restore(snapshot []models.ChatMessage) {
	h.system = ""
	h.messages = nil
	for _, m := range snapshot {
		if m.Role == models.RoleSystem {
			h.system = m.Content
			continue
		}
		h.messages = append(h.messages, m)
	}
	h.trim()
}

// Reset drops the system instruction and all messages.
func (h *ChatHistory) Reset() {
	h.system = ""
	h.messages = nil
}
