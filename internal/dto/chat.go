package dto

// ChatRequest captures POST /chat payload.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,max=128"`
}

// MediaRequest captures the non-file fields of POST /chat/media.
type MediaRequest struct {
	Message     string `form:"message" validate:"max=4000"`
	Transcript  string `form:"transcript" validate:"max=4000"`
	SpeechError string `form:"speechError" validate:"max=64"`
	SessionID   string `form:"sessionId" validate:"omitempty,max=128"`
}

// ChatResponse is returned for every answered turn.
type ChatResponse struct {
	Reply      string `json:"reply"`
	Intent     string `json:"intent"`
	Path       string `json:"path"`
	Transcript string `json:"transcript,omitempty"`
	SessionID  string `json:"sessionId"`
}

// ResetResponse confirms a session reset.
type ResetResponse struct {
	SessionID string `json:"sessionId"`
	Reset     bool   `json:"reset"`
}
