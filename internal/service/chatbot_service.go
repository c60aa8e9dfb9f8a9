package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

type turnState string

const (
	stateIdle                  turnState = "idle"
	stateClassifyingAttachment turnState = "classifying_attachment"
	stateRoutingIntent         turnState = "routing_intent"
	stateFetchingData          turnState = "fetching_data"
	stateGenerating            turnState = "generating"
	stateResponded             turnState = "responded"
	stateFallback              turnState = "fallback"
)

const modeFallback = "fallback"

var tracer = otel.Tracer("github.com/noah-isme/edubot-api/internal/service")

// EnrollmentSource fetches the authenticated user's enrollments.
type EnrollmentSource interface {
	ListEnrollments(ctx context.Context, token string) ([]models.Enrollment, error)
}

// AudioTranscriber turns an audio attachment into text.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audio models.Attachment) (string, error)
}

// ChatbotOptions wires a ChatbotService. Model, Transcriber, Profiles and Metrics are optional.
type ChatbotOptions struct {
	Model               HostedModel
	Provider            string
	HasAPIKey           bool
	Enrollments         EnrollmentSource
	Profiles            ProfileSource
	Transcriber         AudioTranscriber
	Classifier          *IntentClassifier
	Matcher             *EntityMatcher
	Metrics             *MetricsService
	Logger              *zap.Logger
	HistoryLimit        int
	Timeout             time.Duration
	ModelIntentFallback bool
	StartInFallback     bool
	Now                 func() time.Time
}

// ChatbotService answers the turns of one conversation. Turns are serialized.
type ChatbotService struct {
	model               HostedModel
	provider            string
	hasAPIKey           bool
	enrollments         EnrollmentSource
	profiles            ProfileSource
	transcriber         AudioTranscriber
	classifier          *IntentClassifier
	matcher             *EntityMatcher
	metrics             *MetricsService
	logger              *zap.Logger
	timeout             time.Duration
	modelIntentFallback bool
	now                 func() time.Time

	mu             sync.Mutex
	history        *ChatHistory
	convo          models.ConversationContext
	fallback       bool
	fallbackReason string
	version        uint64
	// displayName caches the profile name resolved for nameToken.
	displayName string
	nameToken   string
}

// NewChatbotService constructs a conversation.
func NewChatbotService(opts ChatbotOptions) *ChatbotService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewIntentClassifier(nil, logger)
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = NewEntityMatcher()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	provider := opts.Provider
	if provider == "" && opts.Model != nil {
		provider = opts.Model.Name()
	}

	s := &ChatbotService{
		model:               opts.Model,
		provider:            provider,
		hasAPIKey:           opts.HasAPIKey,
		enrollments:         opts.Enrollments,
		profiles:            opts.Profiles,
		transcriber:         opts.Transcriber,
		classifier:          classifier,
		matcher:             matcher,
		metrics:             opts.Metrics,
		logger:              logger,
		timeout:             timeout,
		modelIntentFallback: opts.ModelIntentFallback,
		now:                 now,
		history:             NewChatHistory(opts.HistoryLimit),
	}
	switch {
	case opts.Model == nil:
		s.fallback = true
		s.fallbackReason = "no hosted model configured"
	case opts.StartInFallback:
		s.fallback = true
		s.fallbackReason = "startup probe failed"
	}
	return s
}

// HandleTurn always returns a reply; failures resolve to canned text.
func (s *ChatbotService) HandleTurn(ctx context.Context, turn models.ChatTurn, user models.UserContext) models.ChatReply {
	ctx, span := tracer.Start(ctx, "chatbot.HandleTurn")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	user = s.withDisplayName(ctx, user)
	s.transition(stateIdle, stateClassifyingAttachment)
	var reply models.ChatReply
	switch {
	case turn.Attachment != nil && turn.Attachment.Kind == models.AttachmentImage:
		reply = s.handleImage(ctx, turn, user)
	case turn.Attachment != nil && turn.Attachment.Kind == models.AttachmentAudio:
		reply = s.handleAudio(ctx, *turn.Attachment, user)
	default:
		reply = s.handleText(ctx, turn.Message, user)
	}

	final := stateResponded
	if reply.Path == models.PathFallback {
		final = stateFallback
	}
	s.transition(stateGenerating, final)
	span.SetAttributes(
		attribute.String("edubot.intent", string(reply.Intent)),
		attribute.String("edubot.path", string(reply.Path)),
	)
	s.metrics.RecordChatTurn(reply.Path, reply.Intent)
	return reply
}

// withDisplayName fills in the profile name for signed-in users whose token carries none.
// The lookup runs once per token; a failed or empty lookup settles on defaultStudentName.
func (s *ChatbotService) withDisplayName(ctx context.Context, user models.UserContext) models.UserContext {
	if !user.Authenticated || user.Name() != "" || s.profiles == nil || user.Token == "" {
		return user
	}
	if s.nameToken != user.Token {
		s.displayName = s.fetchDisplayName(ctx, user.Token)
		s.nameToken = user.Token
	}
	user.DisplayName = s.displayName
	return user
}

func (s *ChatbotService) fetchDisplayName(ctx context.Context, token string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	profile, err := s.profiles.GetProfile(ctx, token)
	s.metrics.ObserveGatewayFetch("profile", err, time.Since(start))
	if err != nil {
		s.logger.Warn("profile fetch failed, using default name", zap.Error(&GatewayError{Op: "get profile", Err: err}))
		return defaultStudentName
	}
	if profile == nil || strings.TrimSpace(profile.Name) == "" {
		return defaultStudentName
	}
	return strings.TrimSpace(profile.Name)
}

func (s *ChatbotService) handleImage(ctx context.Context, turn models.ChatTurn, user models.UserContext) models.ChatReply {
	if s.fallback || s.model == nil {
		return models.ChatReply{Text: imageUnavailableMessage, Intent: models.IntentOther, Path: models.PathFallback}
	}

	prompt := strings.TrimSpace(turn.Message)
	if prompt == "" {
		prompt = defaultImagePrompt
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.model.DescribeImage(callCtx, enrichWithName(prompt, user), turn.Attachment.Data, turn.Attachment.MIMEType)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyModelReply
	}
	if err != nil {
		s.enterFallback(&HostedModelError{Provider: s.provider, Operation: "vision", Err: err})
		return models.ChatReply{Text: imageFailedMessage, Intent: models.IntentOther, Path: models.PathFallback}
	}
	return models.ChatReply{Text: text, Intent: models.IntentOther, Path: models.PathVision}
}

func (s *ChatbotService) handleAudio(ctx context.Context, audio models.Attachment, user models.UserContext) models.ChatReply {
	if s.transcriber == nil {
		terr := &TranscriptionError{Kind: TranscriptionUnavailable}
		if usableTranscript(audio.ClientTranscript) {
			transcript := strings.TrimSpace(audio.ClientTranscript)
			reply := s.handleText(ctx, transcript, user)
			reply.Transcript = transcript
			return reply
		}
		return models.ChatReply{Text: terr.UserMessage(), Intent: models.IntentOther, Path: models.PathTranscriptionError}
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		var terr *TranscriptionError
		if !errors.As(err, &terr) {
			terr = &TranscriptionError{Kind: TranscriptionUnavailable, Err: err}
		}
		s.logger.Info("audio turn without transcript", zap.String("kind", string(terr.Kind)), zap.Error(terr.Err))
		return models.ChatReply{Text: terr.UserMessage(), Intent: models.IntentOther, Path: models.PathTranscriptionError}
	}

	reply := s.handleText(ctx, transcript, user)
	reply.Transcript = transcript
	return reply
}

func (s *ChatbotService) handleText(ctx context.Context, message string, user models.UserContext) models.ChatReply {
	message = strings.TrimSpace(message)
	s.transition(stateClassifyingAttachment, stateRoutingIntent)

	intent := s.resolveIntent(ctx, message, user)
	if intent.Academic() {
		if !user.Authenticated || user.Token == "" {
			s.convo.LastQueryType = intent
			return models.ChatReply{Text: authRequiredMessage, Intent: intent, Path: models.PathAuthRequired}
		}
		if text, ok := s.answerAcademic(ctx, message, intent, user); ok {
			return models.ChatReply{Text: text, Intent: intent, Path: models.PathAcademic}
		}
	}
	return s.converse(ctx, message, intent, user)
}

func (s *ChatbotService) resolveIntent(ctx context.Context, message string, user models.UserContext) models.Intent {
	if s.convo.PendingAction == models.PendingRoadmapOffer {
		s.convo.PendingAction = models.PendingNone
		if isAffirmative(message) {
			return models.IntentRoadmap
		}
	}

	intent := s.classifier.ClassifyAcademic(message)
	if intent != models.IntentOther || !s.modelIntentFallback || !user.Authenticated || s.fallback || !s.classifier.HasModel() {
		return intent
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	modelIntent, err := s.classifier.ClassifyWithModel(callCtx, message)
	if err != nil {
		var herr *HostedModelError
		if !errors.As(err, &herr) {
			herr = &HostedModelError{Provider: s.provider, Operation: "classify", Err: err}
		}
		s.enterFallback(herr)
		return models.IntentOther
	}
	if modelIntent != models.IntentOther {
		s.logger.Debug("intent resolved by hosted model", zap.String("intent", string(modelIntent)))
	}
	return modelIntent
}

func (s *ChatbotService) answerAcademic(ctx context.Context, message string, intent models.Intent, user models.UserContext) (string, bool) {
	if s.enrollments == nil {
		return "", false
	}
	s.transition(stateRoutingIntent, stateFetchingData)

	start := time.Now()
	enrollments, err := s.enrollments.ListEnrollments(ctx, user.Token)
	s.metrics.ObserveGatewayFetch("enrollments", err, time.Since(start))
	if err != nil {
		gerr := &GatewayError{Op: "list enrollments", Err: err}
		s.logger.Warn("enrollment fetch failed, using conversational path", zap.Error(gerr))
		return "", false
	}
	if len(enrollments) == 0 {
		s.logger.Info("no enrollments returned, using conversational path", zap.String("user_id", user.UserID))
		return "", false
	}

	s.transition(stateFetchingData, stateGenerating)
	match := s.matcher.Match(message, enrollments)
	if !match.Found() && match.Candidate == "" && s.convo.LastMentionedSubject != "" && refersToPrevious(message) {
		kind := inferQueryKind(normalizeText(message))
		match = models.MatchResult{Type: matchTypeFor(kind), SubjectName: s.convo.LastMentionedSubject, Query: kind}
	}

	text := s.generate(intent, match, enrollments)

	s.convo.LastQueryType = intent
	if match.Found() {
		s.convo.LastMentionedSubject = match.SubjectName
	}
	if intent == models.IntentWorstGrade {
		if worst, ok := WorstGrade(enrollments); ok {
			s.convo.LastMentionedSubject = worst.SubjectName
		}
		if NeedsAttention(enrollments) {
			s.convo.PendingAction = models.PendingRoadmapOffer
		}
	}
	return text, true
}

func (s *ChatbotService) generate(intent models.Intent, match models.MatchResult, enrollments []models.Enrollment) string {
	switch intent {
	case models.IntentAverage:
		return AverageResponse(enrollments)
	case models.IntentBestGrade:
		return BestGradeResponse(enrollments)
	case models.IntentWorstGrade:
		return WorstGradeResponse(enrollments)
	case models.IntentRoadmap:
		return RoadmapResponse(enrollments)
	}

	if match.Found() {
		if match.Query == models.QueryClassroom || match.Query == models.QuerySection {
			return ClassroomResponse(enrollments, match)
		}
		return SubjectDetailResponse(enrollments, match.SubjectName, s.matcher)
	}
	if match.Candidate != "" && (intent == models.IntentGrades || intent == models.IntentClassroomOrSection) {
		return SubjectDetailResponse(enrollments, match.Candidate, s.matcher)
	}

	switch intent {
	case models.IntentGrades:
		return GradesResponse(enrollments)
	case models.IntentSubjects:
		return SubjectsResponse(enrollments)
	case models.IntentClassroomOrSection:
		return ClassroomResponse(enrollments, match)
	default:
		return AcademicOverviewResponse(enrollments)
	}
}

func (s *ChatbotService) converse(ctx context.Context, message string, intent models.Intent, user models.UserContext) models.ChatReply {
	if intent == models.IntentOther && s.classifier.IsGreeting(message) {
		intent = models.IntentGreeting
	}

	if s.fallback || s.model == nil {
		return models.ChatReply{Text: fallbackReply(s.classifier, message, user), Intent: intent, Path: models.PathFallback}
	}

	if !s.history.Initialized() {
		s.history.Start(systemPrompt(user, s.now()))
	}

	enriched := enrichWithName(message, user)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.model.Chat(callCtx, s.history.System(), s.history.Messages(), enriched)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyModelReply
	}
	if err != nil {
		s.enterFallback(&HostedModelError{Provider: s.provider, Operation: "chat", Err: err})
		return models.ChatReply{Text: fallbackReply(s.classifier, message, user), Intent: intent, Path: models.PathFallback}
	}

	s.history.Append(enriched, text)
	return models.ChatReply{Text: text, Intent: intent, Path: models.PathConversational}
}

// enterFallback switches the session to canned replies for the rest of its life.
func (s *ChatbotService) enterFallback(err *HostedModelError) {
	s.metrics.RecordHostedModelFailure(err.Provider, err.Operation)
	if s.fallback {
		return
	}
	s.fallback = true
	s.fallbackReason = err.Error()
	s.logger.Warn("hosted model failed, switching session to fallback mode", zap.Error(err))
}

func (s *ChatbotService) transition(from, to turnState) {
	s.logger.Debug("chatbot state", zap.String("from", string(from)), zap.String("to", string(to)))
}

// Status reports availability of the hosted model for this session.
func (s *ChatbotService) Status() models.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := s.provider
	if s.fallback {
		mode = modeFallback
	}
	details := fmt.Sprintf("useFallback: %t, hasApiKey: %t", s.fallback, s.hasAPIKey)
	if s.fallbackReason != "" {
		details += ", reason: " + s.fallbackReason
	}
	return models.ServiceStatus{
		Available: !s.fallback && s.model != nil,
		Mode:      mode,
		Provider:  s.provider,
		HasAPIKey: s.hasAPIKey,
		Details:   details,
	}
}

// Reset clears chat history and conversation context. Fallback mode is kept.
func (s *ChatbotService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
	s.convo = models.ConversationContext{}
	s.version++
}

// ConversationContext returns a copy of the cross-turn context.
func (s *ChatbotService) ConversationContext() models.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convo
}

// InFallback reports whether hosted model calls are skipped.
func (s *ChatbotService) InFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallback
}

// State exports the session for persistence.
func (s *ChatbotService) State(sessionID string) models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionState{
		SessionID: sessionID,
		Context:   s.convo,
		History:   s.history.Snapshot(),
		Fallback:  s.fallback,
		Version:   s.version,
		UpdatedAt: s.now().UTC(),
	}
}

// Restore loads a persisted session. A persisted fallback flag is honoured; a cleared one
// never re-enables a session without a model.
func (s *ChatbotService) Restore(state models.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convo = state.Context
	s.history.Restore(state.History)
	s.version = state.Version
	if state.Fallback && !s.fallback {
		s.fallback = true
		s.fallbackReason = "restored from session store"
	}
}

var affirmatives = map[string]struct{}{
	"si": {}, "dale": {}, "claro": {}, "ok": {}, "okay": {}, "por favor": {}, "si por favor": {},
	"claro que si": {}, "de acuerdo": {}, "si claro": {}, "va": {}, "hazlo": {},
}

func isAffirmative(message string) bool {
	tokens := tokenizeText(message)
	if _, ok := affirmatives[tokens]; ok {
		return true
	}
	first, _, _ := strings.Cut(tokens, " ")
	return first == "si" || first == "dale" || first == "claro"
}

var followUpPhrases = []string{"esa materia", "de esa", "en esa", "esa asignatura", "esa clase", "la misma"}

func refersToPrevious(message string) bool {
	return containsAny(normalizeText(message), followUpPhrases)
}

// ProbeModel sends a trivial prompt to check that the hosted model answers.
func ProbeModel(ctx context.Context, model ConversationModel, timeout time.Duration) error {
	if model == nil {
		return errors.New("no hosted model configured")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	text, err := model.Chat(callCtx, "", nil, "Responde 'OK' si estás funcionando")
	if err != nil {
		return &HostedModelError{Provider: model.Name(), Operation: "probe", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return &HostedModelError{Provider: model.Name(), Operation: "probe", Err: ErrEmptyModelReply}
	}
	return nil
}
