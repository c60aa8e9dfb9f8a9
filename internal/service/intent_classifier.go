package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

const modelConfidenceThreshold = 0.7

var (
	averageKeywords = []string{"promedio", "media general", "media de mis", "nota media"}
	bestKeywords    = []string{
		"mejor nota", "mejor calificacion", "nota mas alta", "calificacion mas alta",
		"mejor materia", "mejor puntaje", "me va mejor", "mayor nota",
	}
	worstKeywords = []string{
		"peor nota", "peor calificacion", "nota mas baja", "calificacion mas baja",
		"peor materia", "peor puntaje", "me va peor", "menor nota", "materia mas baja",
	}
	improvementKeywords = []string{"mejorar", "subir", "recuperar", "reforzar", "levantar", "superar"}
	roadmapKeywords     = []string{"roadmap", "hoja de ruta", "plan de estudio", "plan de mejora", "ruta de estudio"}
	intentGradeKeywords = []string{
		"calificacion", "calificaciones", "nota", "notas", "puntaje", "como voy", "como me va",
		"aprobado", "reprobado", "rendimiento",
	}
	subjectKeywords = []string{
		"materia", "materias", "asignatura", "asignaturas", "mis cursos", "que cursos",
		"inscrito", "inscrita", "inscripcion", "inscripciones", "semestre", "en que nivel",
	}
	// subjectWords only count as whole words and yield to place keywords.
	subjectWords  = []string{"nivel", "ciclo", "clase", "clases", "curso", "cursos"}
	placeKeywords = []string{"aula", "salon", "ubicacion", "donde es la clase", "donde me toca", "paralelo", "seccion"}
)

var (
	greetingPattern = regexp.MustCompile(`\b(hola|buenos dias|buenas tardes|buenas noches|buenas|hey|hi|hello|saludos|que tal)\b`)
	thanksPattern   = regexp.MustCompile(`\b(gracias|muchas gracias|te agradezco|thanks)\b`)
)

type intentRule struct {
	intent  models.Intent
	matches func(normalized string) bool
}

// academicRules is evaluated top to bottom; the first match wins.
var academicRules = []intentRule{
	{intent: models.IntentAverage, matches: keywordMatcher(averageKeywords)},
	{intent: models.IntentBestGrade, matches: keywordMatcher(bestKeywords)},
	{intent: models.IntentWorstGrade, matches: keywordMatcher(worstKeywords)},
	{intent: models.IntentRoadmap, matches: func(s string) bool {
		if containsAny(s, roadmapKeywords) {
			return true
		}
		return containsAny(s, intentGradeKeywords) && containsAny(s, improvementKeywords)
	}},
	{intent: models.IntentGrades, matches: keywordMatcher(intentGradeKeywords)},
	{intent: models.IntentSubjects, matches: func(s string) bool {
		if containsAny(s, subjectKeywords) {
			return true
		}
		return !containsAny(s, placeKeywords) && containsAnyWord(s, subjectWords)
	}},
	{intent: models.IntentClassroomOrSection, matches: keywordMatcher(placeKeywords)},
}

func keywordMatcher(keywords []string) func(string) bool {
	return func(s string) bool { return containsAny(s, keywords) }
}

func containsAnyWord(s string, words []string) bool {
	tokens := tokenizeText(s)
	for _, w := range words {
		if containsPhrase(tokens, w) {
			return true
		}
	}
	return false
}

const classificationPrompt = `Eres un clasificador de intenciones para un asistente académico universitario.
Clasifica el mensaje del estudiante en UNA de estas intenciones:
- grades: consultar calificaciones o notas
- average: consultar el promedio
- subjects: consultar materias inscritas
- classroom_or_section: consultar aula, salón o paralelo
- best_grade: consultar la mejor nota
- worst_grade: consultar la peor nota
- roadmap_or_improvement: pedir un plan para mejorar notas
- other: cualquier otra cosa

Responde solo con JSON: {"intent": "<intención>", "confidence": <0-1>}`

// IntentClassifier assigns exactly one intent to a message.
type IntentClassifier struct {
	model  ConversationModel
	logger *zap.Logger
}

// NewIntentClassifier builds a keyword classifier. model is optional and only consulted by ClassifyWithModel.
func NewIntentClassifier(model ConversationModel, logger *zap.Logger) *IntentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentClassifier{model: model, logger: logger}
}

// ClassifyAcademic applies the keyword rules. It never returns greeting.
func (c *IntentClassifier) ClassifyAcademic(message string) models.Intent {
	normalized := normalizeText(message)
	if normalized == "" {
		return models.IntentOther
	}
	for _, rule := range academicRules {
		if rule.matches(normalized) {
			return rule.intent
		}
	}
	return models.IntentOther
}

// Classify is ClassifyAcademic followed by greeting detection.
func (c *IntentClassifier) Classify(message string) models.Intent {
	if intent := c.ClassifyAcademic(message); intent != models.IntentOther {
		return intent
	}
	if c.IsGreeting(message) {
		return models.IntentGreeting
	}
	return models.IntentOther
}

// IsGreeting reports whether the message contains a greeting word.
func (c *IntentClassifier) IsGreeting(message string) bool {
	return greetingPattern.MatchString(normalizeText(message))
}

// IsThanks reports whether the message thanks the assistant.
func (c *IntentClassifier) IsThanks(message string) bool {
	return thanksPattern.MatchString(normalizeText(message))
}

// IsGradeRelated reports whether any grade keyword is present.
func (c *IntentClassifier) IsGradeRelated(message string) bool {
	normalized := normalizeText(message)
	return containsAny(normalized, intentGradeKeywords) || containsAny(normalized, averageKeywords)
}

// HasModel reports whether a secondary classifier is available.
func (c *IntentClassifier) HasModel() bool {
	return c.model != nil
}

type modelClassification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// ClassifyWithModel asks the hosted model for an academic intent. Non-academic labels and
// answers under the confidence threshold yield other.
func (c *IntentClassifier) ClassifyWithModel(ctx context.Context, message string) (models.Intent, error) {
	if c.model == nil {
		return models.IntentOther, nil
	}

	raw, err := c.model.Chat(ctx, classificationPrompt, nil, message)
	if err != nil {
		return models.IntentOther, &HostedModelError{Provider: c.model.Name(), Operation: "classify", Err: err}
	}

	result, err := parseModelClassification(raw)
	if err != nil {
		c.logger.Debug("unparseable model classification", zap.String("raw", raw), zap.Error(err))
		return models.IntentOther, nil
	}

	intent := models.ParseIntent(strings.ToLower(strings.TrimSpace(result.Intent)))
	if !intent.Academic() || result.Confidence < modelConfidenceThreshold {
		return models.IntentOther, nil
	}
	return intent, nil
}

func parseModelClassification(raw string) (modelClassification, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		var lines []string
		inside := false
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inside = !inside
				continue
			}
			if inside {
				lines = append(lines, line)
			}
		}
		raw = strings.Join(lines, "\n")
	}

	var out modelClassification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode classification: %w", err)
	}
	return out, nil
}
