package models

import "time"

// SessionState is the persisted form of one chatbot session.
type SessionState struct {
	SessionID string              `json:"session_id"`
	Context   ConversationContext `json:"context"`
	History   []ChatMessage       `json:"history,omitempty"`
	Fallback  bool                `json:"fallback"`
	// Version grows with every turn or reset so stale snapshots can be told apart.
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
