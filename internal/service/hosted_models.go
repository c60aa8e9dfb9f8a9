package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/edubot-api/internal/models"
)

// ConversationModel sends a system instruction plus ordered history and returns the assistant text.
type ConversationModel interface {
	Name() string
	Chat(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error)
}

// VisionModel answers a prompt about an inline image.
type VisionModel interface {
	DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// HostedModel is a provider offering both conversation and vision calls.
type HostedModel interface {
	ConversationModel
	VisionModel
}

// SpeechTranscriber turns audio bytes into text.
type SpeechTranscriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// HostedModelError wraps a failed conversation or vision call.
type HostedModelError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *HostedModelError) Error() string {
	return fmt.Sprintf("hosted model %s %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *HostedModelError) Unwrap() error { return e.Err }

// GatewayError wraps a network failure reaching the student-information backend.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ErrEmptyModelReply is returned by providers answering with no text.
var ErrEmptyModelReply = errors.New("hosted model returned an empty reply")
