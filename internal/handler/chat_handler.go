package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/dto"
	"github.com/noah-isme/edubot-api/internal/models"
	appErrors "github.com/noah-isme/edubot-api/pkg/errors"
	"github.com/noah-isme/edubot-api/pkg/response"
)

const (
	defaultMaxUploadBytes = 10 << 20
	multipartOverhead     = 1 << 20
)

type chatSessions interface {
	Chat(ctx context.Context, sessionID string, turn models.ChatTurn, user models.UserContext) models.ChatReply
	Status(ctx context.Context, sessionID string) models.ServiceStatus
	Reset(ctx context.Context, sessionID string)
}

// ChatHandler exposes the assistant conversation endpoints.
type ChatHandler struct {
	sessions       chatSessions
	validator      *validator.Validate
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewChatHandler constructs a chat handler.
func NewChatHandler(sessions chatSessions, validate *validator.Validate, maxUploadBytes int64, logger *zap.Logger) *ChatHandler {
	if validate == nil {
		validate = validator.New()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{sessions: sessions, validator: validate, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Chat godoc
// @Summary Send a chat message
// @Tags Chat
// @Accept json
// @Produce json
// @Param X-Session-ID header string false "Anonymous session identifier"
// @Param payload body dto.ChatRequest true "Chat message"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "message is required and must be at most 4000 characters"))
		return
	}

	key, id := sessionID(c, req.SessionID)
	reply := h.sessions.Chat(c.Request.Context(), key, models.ChatTurn{Message: req.Message}, userFromContext(c))
	response.JSON(c, http.StatusOK, toChatResponse(reply, id))
}

// Media godoc
// @Summary Send an image or voice message
// @Tags Chat
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "Image or audio attachment"
// @Param message formData string false "Accompanying text"
// @Param transcript formData string false "Transcript produced by the browser"
// @Param speechError formData string false "Browser speech recognition error code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /chat/media [post]
func (h *ChatHandler) Media(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		response.Error(c, h.uploadError(err))
		return
	}
	defer func() {
		if form := c.Request.MultipartForm; form != nil {
			_ = form.RemoveAll()
		}
	}()

	var req dto.MediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid media payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid media payload"))
		return
	}

	attachment, err := h.readAttachment(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	turn := models.ChatTurn{Message: strings.TrimSpace(req.Message)}
	switch {
	case attachment != nil && attachment.Kind == models.AttachmentAudio:
		attachment.ClientTranscript = req.Transcript
		attachment.ClientSpeechError = req.SpeechError
		turn.Attachment = attachment
	case attachment != nil:
		turn.Attachment = attachment
	case strings.TrimSpace(req.Transcript) != "" || strings.TrimSpace(req.SpeechError) != "":
		turn.Attachment = &models.Attachment{
			Kind:              models.AttachmentAudio,
			ClientTranscript:  req.Transcript,
			ClientSpeechError: req.SpeechError,
		}
	case turn.Message == "":
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "message or file is required"))
		return
	}

	key, id := sessionID(c, req.SessionID)
	reply := h.sessions.Chat(c.Request.Context(), key, turn, userFromContext(c))
	response.JSON(c, http.StatusOK, toChatResponse(reply, id))
}

func (h *ChatHandler) readAttachment(c *gin.Context) (*models.Attachment, error) {
	file, header, err := c.Request.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, h.uploadError(err)
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return nil, appErrors.ErrPayloadTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, h.uploadError(err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, appErrors.ErrPayloadTooLarge
	}

	mediaType := attachmentMediaType(header.Header.Get("Content-Type"), data)
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return &models.Attachment{Kind: models.AttachmentImage, MIMEType: mediaType, Data: data}, nil
	case strings.HasPrefix(mediaType, "audio/"), mediaType == "video/webm":
		return &models.Attachment{Kind: models.AttachmentAudio, MIMEType: mediaType, Data: data}, nil
	default:
		h.logger.Debug("rejected attachment", zap.String("content_type", mediaType))
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "only image and audio files are supported")
	}
}

func (h *ChatHandler) uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.ErrPayloadTooLarge
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
}

// attachmentMediaType prefers the declared part type and sniffs the bytes otherwise.
func attachmentMediaType(declared string, data []byte) string {
	if declared == "" || strings.HasPrefix(declared, "application/octet-stream") {
		declared = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mediaType
}

// Status godoc
// @Summary Assistant availability for the current session
// @Tags Chat
// @Produce json
// @Param X-Session-ID header string false "Anonymous session identifier"
// @Success 200 {object} response.Envelope
// @Router /chat/status [get]
func (h *ChatHandler) Status(c *gin.Context) {
	key, _ := sessionID(c, c.Query("sessionId"))
	response.JSON(c, http.StatusOK, h.sessions.Status(c.Request.Context(), key))
}

// Reset godoc
// @Summary Clear chat history and conversation context
// @Tags Chat
// @Produce json
// @Param X-Session-ID header string false "Anonymous session identifier"
// @Success 200 {object} response.Envelope
// @Router /chat/reset [post]
func (h *ChatHandler) Reset(c *gin.Context) {
	key, id := sessionID(c, c.Query("sessionId"))
	h.sessions.Reset(c.Request.Context(), key)
	response.JSON(c, http.StatusOK, dto.ResetResponse{SessionID: id, Reset: true})
}

func toChatResponse(reply models.ChatReply, id string) dto.ChatResponse {
	return dto.ChatResponse{
		Reply:      reply.Text,
		Intent:     string(reply.Intent),
		Path:       string(reply.Path),
		Transcript: reply.Transcript,
		SessionID:  id,
	}
}
