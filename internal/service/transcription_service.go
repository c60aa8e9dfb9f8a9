package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

const (
	minTranscriptRunes   = 3
	clientTranscriberTag = "client"
)

// TranscriptionFailure distinguishes why no usable transcript was obtained.
type TranscriptionFailure string

const (
	TranscriptionNoSpeech     TranscriptionFailure = "no_speech"
	TranscriptionAudioCapture TranscriptionFailure = "audio_capture"
	TranscriptionNotAllowed   TranscriptionFailure = "not_allowed"
	TranscriptionNetwork      TranscriptionFailure = "network"
	TranscriptionUnavailable  TranscriptionFailure = "unavailable"
)

// TranscriptionError is returned when every transcription source failed.
type TranscriptionError struct {
	Kind TranscriptionFailure
	Err  error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transcription %s", e.Kind)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// UserMessage is the instruction shown to the user for this failure.
func (e *TranscriptionError) UserMessage() string {
	switch e.Kind {
	case TranscriptionNoSpeech:
		return "🎙️ No se detectó voz en el audio. Por favor intenta de nuevo hablando más claro y cerca del micrófono."
	case TranscriptionAudioCapture:
		return "🎙️ No se pudo capturar el audio. Verifica que tu micrófono esté conectado y funcionando."
	case TranscriptionNotAllowed:
		return "🔒 No tengo permiso para usar tu micrófono. Habilita el acceso al micrófono en tu navegador e inténtalo otra vez."
	case TranscriptionNetwork:
		return "🌐 No pude conectarme al servicio de transcripción. Revisa tu conexión e inténtalo nuevamente."
	default:
		return "🎙️ La transcripción de voz no está disponible en este momento. Por favor escribe tu mensaje."
	}
}

// client-side speech recognition error codes
func clientFailureKind(code string) TranscriptionFailure {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "_", "-")) {
	case "":
		return ""
	case "no-speech":
		return TranscriptionNoSpeech
	case "audio-capture":
		return TranscriptionAudioCapture
	case "not-allowed", "service-not-allowed", "permission-denied":
		return TranscriptionNotAllowed
	case "network":
		return TranscriptionNetwork
	default:
		return TranscriptionUnavailable
	}
}

// TranscriptionService tries hosted providers in order, then the transcript the client produced itself.
type TranscriptionService struct {
	providers []SpeechTranscriber
	timeout   time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewTranscriptionService builds the chain. Nil providers are skipped.
func NewTranscriptionService(providers []SpeechTranscriber, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *TranscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	chain := make([]SpeechTranscriber, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &TranscriptionService{providers: chain, timeout: timeout, metrics: metrics, logger: logger}
}

// Providers lists the configured hosted providers in order.
func (s *TranscriptionService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Transcribe returns a transcript of at least three characters or a *TranscriptionError.
func (s *TranscriptionService) Transcribe(ctx context.Context, audio models.Attachment) (string, error) {
	var (
		sawShort bool
		lastErr  error
	)

	if len(audio.Data) > 0 {
		for _, provider := range s.providers {
			text, err := s.callProvider(ctx, provider, audio)
			if err != nil {
				lastErr = err
				s.metrics.RecordTranscription(provider.Name(), "error")
				s.logger.Warn("hosted transcription failed", zap.String("provider", provider.Name()), zap.Error(err))
				continue
			}
			if usableTranscript(text) {
				s.metrics.RecordTranscription(provider.Name(), "ok")
				return strings.TrimSpace(text), nil
			}
			sawShort = true
			s.metrics.RecordTranscription(provider.Name(), "no_speech")
		}
	}

	if usableTranscript(audio.ClientTranscript) {
		s.metrics.RecordTranscription(clientTranscriberTag, "ok")
		return strings.TrimSpace(audio.ClientTranscript), nil
	}
	if strings.TrimSpace(audio.ClientTranscript) != "" {
		sawShort = true
	}

	kind := s.failureKind(audio, sawShort, lastErr)
	s.metrics.RecordTranscription(clientTranscriberTag, string(kind))
	return "", &TranscriptionError{Kind: kind, Err: lastErr}
}

func (s *TranscriptionService) callProvider(ctx context.Context, provider SpeechTranscriber, audio models.Attachment) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return provider.Transcribe(callCtx, audio.Data, audio.MIMEType)
}

func (s *TranscriptionService) failureKind(audio models.Attachment, sawShort bool, providerErr error) TranscriptionFailure {
	clientKind := clientFailureKind(audio.ClientSpeechError)
	switch {
	case sawShort:
		return TranscriptionNoSpeech
	case providerErr != nil:
		return TranscriptionNetwork
	case clientKind != "":
		return clientKind
	case len(audio.Data) == 0:
		return TranscriptionAudioCapture
	default:
		return TranscriptionUnavailable
	}
}

func usableTranscript(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= minTranscriptRunes
}
