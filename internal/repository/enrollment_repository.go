package repository

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

const enrollmentsPath = "/mis-inscripciones/"

// EnrollmentRepository reads the authenticated student's enrollments from the backend.
type EnrollmentRepository struct {
	backend *BackendClient
	logger  *zap.Logger
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(backend *BackendClient, logger *zap.Logger) *EnrollmentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentRepository{backend: backend, logger: logger}
}

type backendLevel struct {
	Nombre string          `json:"nombre"`
	Numero json.RawMessage `json:"numero_nivel"`
}

type backendNamed struct {
	Nombre string `json:"nombre"`
}

type backendSubject struct {
	Nombre string          `json:"nombre"`
	Nivel  json.RawMessage `json:"nivel"`
}

type backendSection struct {
	Aula    json.RawMessage `json:"aula"`
	Numero  json.RawMessage `json:"numero_paralelo"`
	Materia json.RawMessage `json:"materia"`
}

type backendEnrollment struct {
	EnrollmentID json.RawMessage `json:"id_Inscripcion"`
	ID           json.RawMessage `json:"id"`
	Grade        json.RawMessage `json:"calificacion"`
	Carrera      json.RawMessage `json:"carrera"`
	Nivel        json.RawMessage `json:"nivel"`
	Paralelo     json.RawMessage `json:"paralelo"`
	EnrolledAt   string          `json:"fecha_inscripcion"`
}

// ListEnrollments returns the caller's enrollments. Non-2xx statuses and non-array bodies
// yield an empty list; only transport failures are errors.
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, token string) ([]models.Enrollment, error) {
	resp, err := r.backend.get(ctx, enrollmentsPath, token)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		r.logger.Warn("enrollment fetch returned non-2xx", zap.Int("status", resp.Status))
		return []models.Enrollment{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(resp.Body, &items); err != nil {
		r.logger.Warn("enrollment payload is not an array", zap.Error(err))
		return []models.Enrollment{}, nil
	}

	out := make([]models.Enrollment, 0, len(items))
	for i, item := range items {
		var wire backendEnrollment
		if !decodeObject(item, &wire) {
			r.logger.Warn("dropping malformed enrollment record", zap.Int("index", i))
			continue
		}
		out = append(out, normalizeEnrollment(wire, i))
	}
	return out, nil
}

func normalizeEnrollment(wire backendEnrollment, index int) models.Enrollment {
	e := models.Enrollment{
		ID:    rawString(wire.EnrollmentID),
		Grade: parseGrade(wire.Grade),
	}
	if e.ID == "" {
		e.ID = rawString(wire.ID)
	}
	if e.ID == "" {
		e.ID = strconv.Itoa(index + 1)
	}

	var program backendNamed
	if decodeObject(wire.Carrera, &program) {
		e.ProgramName = strings.TrimSpace(program.Nombre)
	}

	var section backendSection
	var subject backendSubject
	if decodeObject(wire.Paralelo, &section) {
		e.Classroom = rawString(section.Aula)
		e.SectionNumber = rawString(section.Numero)
		if decodeObject(section.Materia, &subject) {
			e.SubjectName = strings.TrimSpace(subject.Nombre)
		}
	}

	e.LevelName = levelName(wire.Nivel)
	if e.LevelName == "" {
		e.LevelName = levelName(subject.Nivel)
	}

	if ts, ok := parseTimestamp(wire.EnrolledAt); ok {
		e.EnrolledAt = &ts
	}
	return e
}

func levelName(raw json.RawMessage) string {
	var level backendLevel
	if !decodeObject(raw, &level) {
		return ""
	}
	if name := strings.TrimSpace(level.Nombre); name != "" {
		return name
	}
	if n := rawString(level.Numero); n != "" {
		return "Nivel " + n
	}
	return ""
}

const maxGrade = 100

// parseGrade accepts a JSON number or a numeric string within [0, maxGrade]; anything
// else is ungraded.
func parseGrade(raw json.RawMessage) *float64 {
	text := rawString(raw)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > maxGrade {
		return nil
	}
	return &v
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
