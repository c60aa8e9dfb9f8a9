package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/edubot-api/internal/models"
)

type fakeEnrollmentSource struct {
	mu     sync.Mutex
	list   []models.Enrollment
	err    error
	calls  int
	tokens []string
}

func (f *fakeEnrollmentSource) ListEnrollments(ctx context.Context, token string) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

type fakeProfileSource struct {
	profile *models.StudentProfile
	err     error
	calls   int
}

func (f *fakeProfileSource) GetProfile(ctx context.Context, token string) (*models.StudentProfile, error) {
	f.calls++
	return f.profile, f.err
}

type chatCall struct {
	system  string
	history []models.ChatMessage
	message string
}

type fakeHostedModel struct {
	reply      string
	err        error
	visionText string
	visionErr  error
	chatCalls  []chatCall
	imageCalls int
	lastPrompt string
	lastMIME   string
}

func (f *fakeHostedModel) Name() string { return "fake" }

func (f *fakeHostedModel) Chat(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error) {
	f.chatCalls = append(f.chatCalls, chatCall{system: system, history: history, message: message})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeHostedModel) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	f.imageCalls++
	f.lastPrompt = prompt
	f.lastMIME = mimeType
	if f.visionErr != nil {
		return "", f.visionErr
	}
	return f.visionText, nil
}

type fakeTranscriber struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Name() string { return f.name }

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeSessionStore struct {
	mu     sync.Mutex
	states map[string]models.SessionState
	saves  int
	ttl    time.Duration
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{states: make(map[string]models.SessionState)}
}

func (f *fakeSessionStore) Load(ctx context.Context, id string) (models.SessionState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[id]
	return state, ok, nil
}

func (f *fakeSessionStore) Save(ctx context.Context, state models.SessionState, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.SessionID] = state
	f.saves++
	f.ttl = ttl
	return nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, id)
	return nil
}

func grade(v float64) *float64 { return &v }

func sampleEnrollments() []models.Enrollment {
	return []models.Enrollment{
		{ID: "1", SubjectName: "Cálculo", Grade: grade(65), Classroom: "B-201", SectionNumber: "2", ProgramName: "Software", LevelName: "Primer nivel"},
		{ID: "2", SubjectName: "Física", Grade: grade(95), Classroom: "Lab 3", SectionNumber: "1", ProgramName: "Software", LevelName: "Primer nivel"},
		{ID: "3", SubjectName: "Programación Orientada a Objetos", Grade: nil, Classroom: "C-105", SectionNumber: "3", ProgramName: "Software", LevelName: "Segundo nivel"},
	}
}
