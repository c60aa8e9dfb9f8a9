package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubot-api/internal/models"
)

var fixedNow = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

func student() models.UserContext {
	return models.UserContext{Authenticated: true, Token: "tok", UserID: "42", DisplayName: "Ana"}
}

func newTestChatbot(model HostedModel, source EnrollmentSource, mutate ...func(*ChatbotOptions)) *ChatbotService {
	opts := ChatbotOptions{
		Model:       model,
		HasAPIKey:   model != nil,
		Enrollments: source,
		Now:         func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewChatbotService(opts)
}

func say(msg string) models.ChatTurn { return models.ChatTurn{Message: msg} }

func TestChatbotAcademicQueryRequiresLogin(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	model := &fakeHostedModel{reply: "hola"}
	bot := newTestChatbot(model, source)

	reply := bot.HandleTurn(context.Background(), say("¿Cuál es mi promedio?"), models.UserContext{})
	assert.Equal(t, models.PathAuthRequired, reply.Path)
	assert.Equal(t, models.IntentAverage, reply.Intent)
	assert.Equal(t, authRequiredMessage, reply.Text)
	assert.Zero(t, source.calls)
	assert.Empty(t, model.chatCalls)
}

func TestChatbotAnswersAcademicIntents(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	bot := newTestChatbot(&fakeHostedModel{}, source)
	ctx := context.Background()

	reply := bot.HandleTurn(ctx, say("¿Cuál es mi promedio?"), student())
	assert.Equal(t, models.PathAcademic, reply.Path)
	assert.Contains(t, reply.Text, "80.00")
	assert.Equal(t, []string{"tok"}, source.tokens)

	reply = bot.HandleTurn(ctx, say("¿cuál es mi mejor nota?"), student())
	assert.Equal(t, models.IntentBestGrade, reply.Intent)
	assert.Contains(t, reply.Text, "Física")

	reply = bot.HandleTurn(ctx, say("¿Qué materias tengo?"), student())
	assert.Equal(t, models.IntentSubjects, reply.Intent)
	assert.Contains(t, reply.Text, "Total de materias:** 3")
	assert.Equal(t, models.IntentSubjects, bot.ConversationContext().LastQueryType)
}

func TestChatbotRoadmapOfferAccepted(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	bot := newTestChatbot(&fakeHostedModel{}, source)
	ctx := context.Background()

	reply := bot.HandleTurn(ctx, say("¿Cuál es mi peor nota?"), student())
	assert.Equal(t, models.IntentWorstGrade, reply.Intent)
	assert.Contains(t, reply.Text, needsAttentionHeading)
	convo := bot.ConversationContext()
	assert.Equal(t, models.PendingRoadmapOffer, convo.PendingAction)
	assert.Equal(t, "Cálculo", convo.LastMentionedSubject)

	reply = bot.HandleTurn(ctx, say("Sí, por favor"), student())
	assert.Equal(t, models.IntentRoadmap, reply.Intent)
	assert.Equal(t, models.PathAcademic, reply.Path)
	assert.Contains(t, reply.Text, "Plan de Mejora")
	assert.Equal(t, models.PendingNone, bot.ConversationContext().PendingAction)
}

func TestChatbotRoadmapOfferDeclinedIsCleared(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	model := &fakeHostedModel{reply: "De acuerdo."}
	bot := newTestChatbot(model, source)
	ctx := context.Background()

	bot.HandleTurn(ctx, say("mi peor calificación"), student())
	reply := bot.HandleTurn(ctx, say("no, gracias"), student())
	assert.Equal(t, models.PathConversational, reply.Path)
	assert.Equal(t, models.PendingNone, bot.ConversationContext().PendingAction)

	reply = bot.HandleTurn(ctx, say("sí"), student())
	assert.NotEqual(t, models.IntentRoadmap, reply.Intent)
}

func TestChatbotFollowUpUsesLastSubject(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	bot := newTestChatbot(&fakeHostedModel{}, source)
	ctx := context.Background()

	reply := bot.HandleTurn(ctx, say("¿En qué aula es Cálculo?"), student())
	assert.Equal(t, models.IntentClassroomOrSection, reply.Intent)
	assert.Contains(t, reply.Text, "B-201")
	assert.NotContains(t, reply.Text, "Lab 3")
	assert.Equal(t, "Cálculo", bot.ConversationContext().LastMentionedSubject)

	reply = bot.HandleTurn(ctx, say("¿y qué nota tengo en esa materia?"), student())
	assert.Equal(t, models.IntentGrades, reply.Intent)
	assert.Contains(t, reply.Text, "**Cálculo**")
	assert.Contains(t, reply.Text, "65/100")
}

func TestChatbotUnknownSubjectListsEnrollments(t *testing.T) {
	bot := newTestChatbot(&fakeHostedModel{}, &fakeEnrollmentSource{list: sampleEnrollments()})
	reply := bot.HandleTurn(context.Background(), say("¿Cuál es mi nota de Química?"), student())
	assert.Equal(t, models.PathAcademic, reply.Path)
	assert.Contains(t, reply.Text, "No encontré la materia \"quimica\"")
	assert.Contains(t, reply.Text, "• Cálculo")
}

func TestChatbotGatewayFailureUsesConversationalPath(t *testing.T) {
	for name, source := range map[string]*fakeEnrollmentSource{
		"error": {err: errors.New("connection refused")},
		"empty": {list: []models.Enrollment{}},
	} {
		t.Run(name, func(t *testing.T) {
			model := &fakeHostedModel{reply: "No pude ver tus notas, pero puedo ayudarte."}
			bot := newTestChatbot(model, source)

			reply := bot.HandleTurn(context.Background(), say("mis notas"), student())
			assert.Equal(t, models.PathConversational, reply.Path)
			assert.Equal(t, model.reply, reply.Text)
			assert.Equal(t, 1, source.calls)
			require.Len(t, model.chatCalls, 1)
			assert.Equal(t, "[Usuario: Ana] mis notas", model.chatCalls[0].message)
		})
	}
}

func TestChatbotConversationKeepsHistory(t *testing.T) {
	model := &fakeHostedModel{reply: "¡Hola Ana!"}
	bot := newTestChatbot(model, nil)
	ctx := context.Background()

	reply := bot.HandleTurn(ctx, say("hola"), student())
	assert.Equal(t, models.IntentGreeting, reply.Intent)
	assert.Equal(t, models.PathConversational, reply.Path)

	bot.HandleTurn(ctx, say("cuéntame algo de historia"), student())
	require.Len(t, model.chatCalls, 2)
	assert.Empty(t, model.chatCalls[0].history)
	assert.Len(t, model.chatCalls[1].history, 2)
	assert.Contains(t, model.chatCalls[0].system, "Nombre: Ana")
	assert.Contains(t, model.chatCalls[0].system, "16/10/2026 10:00")

	bot.Reset()
	bot.HandleTurn(ctx, say("otra vez"), student())
	assert.Empty(t, model.chatCalls[2].history)
}

func TestChatbotModelFailureIsPersistent(t *testing.T) {
	model := &fakeHostedModel{err: errors.New("503")}
	metrics := NewMetricsService()
	bot := newTestChatbot(model, nil, func(o *ChatbotOptions) { o.Metrics = metrics })
	ctx := context.Background()

	reply := bot.HandleTurn(ctx, say("hola"), student())
	assert.Equal(t, models.PathFallback, reply.Path)
	assert.Contains(t, reply.Text, "¡Hola Ana!")
	assert.True(t, bot.InFallback())

	model.err = nil
	model.reply = "ya funciono"
	reply = bot.HandleTurn(ctx, say("¿me ayudas?"), student())
	assert.Equal(t, models.PathFallback, reply.Path)
	assert.Equal(t, genericFallback, reply.Text)
	assert.Len(t, model.chatCalls, 1)

	bot.Reset()
	assert.True(t, bot.InFallback())

	status := bot.Status()
	assert.False(t, status.Available)
	assert.Equal(t, modeFallback, status.Mode)
	assert.True(t, strings.HasPrefix(status.Details, "useFallback: true, hasApiKey: true"))

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.HostedModelFailures)
	assert.EqualValues(t, 2, snap.FallbackTurns)
}

func TestChatbotWithoutModelStartsInFallback(t *testing.T) {
	bot := newTestChatbot(nil, &fakeEnrollmentSource{list: sampleEnrollments()})
	assert.True(t, bot.InFallback())

	reply := bot.HandleTurn(context.Background(), say("gracias"), models.UserContext{})
	assert.Equal(t, models.PathFallback, reply.Path)
	assert.Equal(t, thanksFallback(""), reply.Text)

	reply = bot.HandleTurn(context.Background(), say("¿Cuál es mi promedio?"), student())
	assert.Equal(t, models.PathAcademic, reply.Path, "academic data never needs the hosted model")

	status := bot.Status()
	assert.Equal(t, "useFallback: true, hasApiKey: false, reason: no hosted model configured", status.Details)
}

func TestChatbotStatusWhenAvailable(t *testing.T) {
	status := newTestChatbot(&fakeHostedModel{}, nil).Status()
	assert.True(t, status.Available)
	assert.Equal(t, "fake", status.Mode)
	assert.Equal(t, "useFallback: false, hasApiKey: true", status.Details)
}

func TestChatbotImageTurns(t *testing.T) {
	image := &models.Attachment{Kind: models.AttachmentImage, MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	t.Run("described", func(t *testing.T) {
		model := &fakeHostedModel{visionText: "Veo un diagrama de flujo."}
		bot := newTestChatbot(model, nil)
		reply := bot.HandleTurn(context.Background(), models.ChatTurn{Attachment: image}, student())
		assert.Equal(t, models.PathVision, reply.Path)
		assert.Equal(t, model.visionText, reply.Text)
		assert.Equal(t, "image/png", model.lastMIME)
		assert.Equal(t, "[Usuario: Ana] "+defaultImagePrompt, model.lastPrompt)
	})

	t.Run("failure enters fallback", func(t *testing.T) {
		model := &fakeHostedModel{visionErr: errors.New("too large")}
		bot := newTestChatbot(model, nil)
		reply := bot.HandleTurn(context.Background(), models.ChatTurn{Message: "¿qué es esto?", Attachment: image}, student())
		assert.Equal(t, imageFailedMessage, reply.Text)
		assert.True(t, bot.InFallback())

		reply = bot.HandleTurn(context.Background(), models.ChatTurn{Attachment: image}, student())
		assert.Equal(t, imageUnavailableMessage, reply.Text)
		assert.Equal(t, 1, model.imageCalls)
	})
}

func TestChatbotAudioTurns(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	provider := &fakeTranscriber{name: "gemini", text: "cuál es mi promedio"}
	transcriber := NewTranscriptionService([]SpeechTranscriber{provider}, 0, nil, nil)
	bot := newTestChatbot(&fakeHostedModel{}, source, func(o *ChatbotOptions) { o.Transcriber = transcriber })

	audio := &models.Attachment{Kind: models.AttachmentAudio, MIMEType: "audio/webm", Data: []byte{1, 2, 3}}
	reply := bot.HandleTurn(context.Background(), models.ChatTurn{Attachment: audio}, student())
	assert.Equal(t, "cuál es mi promedio", reply.Transcript)
	assert.Equal(t, models.PathAcademic, reply.Path)
	assert.Contains(t, reply.Text, "80.00")

	provider.text = ""
	reply = bot.HandleTurn(context.Background(), models.ChatTurn{Attachment: audio}, student())
	assert.Equal(t, models.PathTranscriptionError, reply.Path)
	assert.Equal(t, (&TranscriptionError{Kind: TranscriptionNoSpeech}).UserMessage(), reply.Text)
}

func TestChatbotAudioWithoutTranscriber(t *testing.T) {
	bot := newTestChatbot(&fakeHostedModel{}, &fakeEnrollmentSource{list: sampleEnrollments()})

	audio := &models.Attachment{Kind: models.AttachmentAudio, ClientTranscript: "mis notas"}
	reply := bot.HandleTurn(context.Background(), models.ChatTurn{Attachment: audio}, student())
	assert.Equal(t, models.IntentGrades, reply.Intent)
	assert.Equal(t, "mis notas", reply.Transcript)

	reply = bot.HandleTurn(context.Background(), models.ChatTurn{Attachment: &models.Attachment{Kind: models.AttachmentAudio}}, student())
	assert.Equal(t, models.PathTranscriptionError, reply.Path)
}

func TestChatbotModelIntentClassification(t *testing.T) {
	source := &fakeEnrollmentSource{list: sampleEnrollments()}
	model := &fakeHostedModel{reply: `{"intent": "grades", "confidence": 0.9}`}
	bot := newTestChatbot(model, source, func(o *ChatbotOptions) {
		o.ModelIntentFallback = true
		o.Classifier = NewIntentClassifier(model, nil)
	})

	reply := bot.HandleTurn(context.Background(), say("¿cómo ando este año?"), student())
	assert.Equal(t, models.IntentGrades, reply.Intent)
	assert.Equal(t, models.PathAcademic, reply.Path)
	require.Len(t, model.chatCalls, 1)
	assert.Equal(t, classificationPrompt, model.chatCalls[0].system)

	reply = bot.HandleTurn(context.Background(), say("¿cómo ando este año?"), models.UserContext{})
	assert.Len(t, model.chatCalls, 2, "anonymous turns skip model classification and go straight to chat")
	assert.NotEqual(t, models.PathAuthRequired, reply.Path)
}

func TestChatbotResolvesProfileNameOncePerSession(t *testing.T) {
	model := &fakeHostedModel{reply: "jaja"}
	profiles := &fakeProfileSource{profile: &models.StudentProfile{Name: " Ana Torres "}}
	bot := newTestChatbot(model, &fakeEnrollmentSource{}, func(o *ChatbotOptions) { o.Profiles = profiles })
	user := models.UserContext{Authenticated: true, Token: "tok", UserID: "42"}

	bot.HandleTurn(context.Background(), say("cuéntame un chiste"), user)
	bot.HandleTurn(context.Background(), say("otro chiste"), user)

	require.Len(t, model.chatCalls, 2)
	assert.Equal(t, "[Usuario: Ana Torres] cuéntame un chiste", model.chatCalls[0].message)
	assert.Equal(t, "[Usuario: Ana Torres] otro chiste", model.chatCalls[1].message)
	assert.Equal(t, 1, profiles.calls)

	bot.HandleTurn(context.Background(), say("hola de nuevo"), student())
	assert.Equal(t, "[Usuario: Ana] hola de nuevo", model.chatCalls[2].message, "a name in the token wins")
	assert.Equal(t, 1, profiles.calls)

	bot.HandleTurn(context.Background(), say("chao"), models.UserContext{})
	assert.Equal(t, "chao", model.chatCalls[3].message)
}

func TestChatbotProfileFailureFallsBackToDefaultName(t *testing.T) {
	model := &fakeHostedModel{reply: "ok"}
	profiles := &fakeProfileSource{err: errors.New("timeout")}
	bot := newTestChatbot(model, &fakeEnrollmentSource{}, func(o *ChatbotOptions) { o.Profiles = profiles })

	bot.HandleTurn(context.Background(), say("cuéntame un chiste"), models.UserContext{Authenticated: true, Token: "tok"})

	require.Len(t, model.chatCalls, 1)
	assert.Equal(t, "[Usuario: Usuario] cuéntame un chiste", model.chatCalls[0].message)
}

func TestChatbotStateRoundTrip(t *testing.T) {
	bot := newTestChatbot(&fakeHostedModel{reply: "ok"}, &fakeEnrollmentSource{list: sampleEnrollments()})
	bot.HandleTurn(context.Background(), say("mi peor nota"), student())

	state := bot.State("s1")
	assert.Equal(t, "s1", state.SessionID)
	assert.Equal(t, fixedNow, state.UpdatedAt)
	assert.Equal(t, uint64(1), state.Version)
	state.Fallback = true

	restored := newTestChatbot(&fakeHostedModel{}, nil)
	restored.Restore(state)
	assert.True(t, restored.InFallback())
	assert.Equal(t, models.PendingRoadmapOffer, restored.ConversationContext().PendingAction)

	restored.Reset()
	assert.Equal(t, uint64(2), restored.State("s1").Version, "versions keep growing after a restore")
}

func TestProbeModel(t *testing.T) {
	assert.Error(t, ProbeModel(context.Background(), nil, 0))

	var herr *HostedModelError
	err := ProbeModel(context.Background(), &fakeHostedModel{err: errors.New("bad key")}, time.Second)
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "probe", herr.Operation)

	err = ProbeModel(context.Background(), &fakeHostedModel{reply: " "}, time.Second)
	require.ErrorIs(t, err, ErrEmptyModelReply)

	assert.NoError(t, ProbeModel(context.Background(), &fakeHostedModel{reply: "OK"}, time.Second))
}

func TestIsAffirmative(t *testing.T) {
	for _, msg := range []string{"sí", "Si, claro", "dale", "ok", "¡Claro que sí!", "de acuerdo"} {
		assert.True(t, isAffirmative(msg), msg)
	}
	for _, msg := range []string{"no", "no gracias", "simplemente no", ""} {
		assert.False(t, isAffirmative(msg), msg)
	}
}
