package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/noah-isme/edubot-api/internal/models"
)

const (
	minCandidateLength   = 3
	significantWordRunes = 4
)

// subjectRule extracts a subject candidate from a normalized message. Rules are tried in order.
type subjectRule struct {
	name    string
	pattern *regexp.Regexp
	kind    models.QueryKind
}

const subjectLead = `(?:la\s+|el\s+|mi\s+)?(?:materia\s+(?:de\s+)?|asignatura\s+(?:de\s+)?|clase\s+de\s+)?`

var subjectRules = []subjectRule{
	{
		name:    "classroom_of",
		pattern: regexp.MustCompile(`\b(?:aula|salon|ubicacion|lugar)\s+(?:de\s+clases?\s+)?(?:de|del|para)\s+` + subjectLead + `(.+)`),
		kind:    models.QueryClassroom,
	},
	{
		name:    "classroom_verb",
		pattern: regexp.MustCompile(`\b(?:aula|salon)\s+(?:es|tengo|toca|me\s+toca|queda)\s+` + subjectLead + `(.+)`),
		kind:    models.QueryClassroom,
	},
	{
		name:    "where_is",
		pattern: regexp.MustCompile(`\bdonde\s+(?:es|queda|tengo|me\s+toca|se\s+dicta)\s+` + subjectLead + `(.+)`),
		kind:    models.QueryClassroom,
	},
	{
		name:    "section_of",
		pattern: regexp.MustCompile(`\b(?:paralelo|seccion|grupo)\s+(?:de|del|en)\s+` + subjectLead + `(.+)`),
		kind:    models.QuerySection,
	},
	{
		name:    "grade_in",
		pattern: regexp.MustCompile(`\b(?:nota|notas|calificacion|calificaciones|puntaje)\s+(?:de|del|en)\s+` + subjectLead + `(.+)`),
		kind:    models.QueryGrade,
	},
	{
		name:    "how_am_i_doing",
		pattern: regexp.MustCompile(`\b(?:como|que\s+tal)\s+(?:voy|me\s+va|estoy)\s+en\s+` + subjectLead + `(.+)`),
		kind:    models.QueryGrade,
	},
}

// Candidates that start with these words refer to a period or to everything, not a subject.
var genericCandidateWords = map[string]struct{}{
	"este": {}, "esta": {}, "estos": {}, "estas": {}, "mis": {}, "todas": {}, "todos": {},
	"todo": {}, "cada": {}, "las": {}, "los": {}, "semestre": {}, "ciclo": {}, "nivel": {},
	"periodo": {}, "hoy": {}, "general": {},
}

var trailingFiller = []string{"por favor", "porfa", "gracias", "porfavor", "ahora", "actualmente"}

var (
	classroomKeywords = []string{"aula", "salon", "ubicacion", "donde", "lugar"}
	sectionKeywords   = []string{"paralelo", "seccion", "grupo"}
	gradeKeywords     = []string{"calificacion", "calificaciones", "nota", "notas", "puntaje", "promedio", "como voy", "como me va"}
)

// EntityMatcher finds which enrolled subject a message refers to and what is asked about it.
type EntityMatcher struct {
	rules []subjectRule
}

// NewEntityMatcher constructs a matcher with the built-in rule set.
func NewEntityMatcher() *EntityMatcher {
	return &EntityMatcher{rules: subjectRules}
}

// Match resolves message against enrollments. The first rule that extracts a candidate
// decides the outcome; the direct scan only runs when no rule fired.
func (m *EntityMatcher) Match(message string, enrollments []models.Enrollment) models.MatchResult {
	normalized := normalizeText(message)
	if normalized == "" {
		return models.MatchResult{Type: models.MatchNone}
	}

	for _, rule := range m.rules {
		candidate, ok := extractCandidate(rule.pattern, normalized)
		if !ok {
			continue
		}
		if name, found := resolveSubject(candidate, enrollments); found {
			return models.MatchResult{Type: matchTypeFor(rule.kind), SubjectName: name, Query: rule.kind}
		}
		return models.MatchResult{Type: models.MatchNone, Candidate: candidate}
	}

	tokens := tokenizeText(message)
	for _, e := range enrollments {
		name := tokenizeText(e.SubjectName)
		if name == "" {
			continue
		}
		if containsPhrase(tokens, name) {
			kind := inferQueryKind(normalized)
			return models.MatchResult{Type: matchTypeFor(kind), SubjectName: e.SubjectName, Query: kind}
		}
	}

	return models.MatchResult{Type: models.MatchNone}
}

// FindEnrollment returns the first enrollment whose subject resolves from name.
func (m *EntityMatcher) FindEnrollment(name string, enrollments []models.Enrollment) (models.Enrollment, bool) {
	target := normalizeText(name)
	for _, e := range enrollments {
		if normalizeText(e.SubjectName) == target && target != "" {
			return e, true
		}
	}
	resolved, ok := resolveSubject(target, enrollments)
	if !ok {
		return models.Enrollment{}, false
	}
	for _, e := range enrollments {
		if e.SubjectName == resolved {
			return e, true
		}
	}
	return models.Enrollment{}, false
}

func extractCandidate(pattern *regexp.Regexp, normalized string) (string, bool) {
	groups := pattern.FindStringSubmatch(normalized)
	if len(groups) < 2 {
		return "", false
	}
	candidate := cleanCandidate(groups[1])
	if utf8.RuneCountInString(candidate) < minCandidateLength {
		return "", false
	}
	first := strings.Fields(candidate)[0]
	if _, generic := genericCandidateWords[first]; generic {
		return "", false
	}
	return candidate, true
}

func cleanCandidate(raw string) string {
	candidate := strings.TrimFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, filler := range trailingFiller {
		candidate = strings.TrimSpace(strings.TrimSuffix(candidate, filler))
	}
	return strings.TrimFunc(candidate, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// resolveSubject maps a normalized candidate to an enrollment subject name by containment
// in either direction or by a shared word longer than four letters.
func resolveSubject(candidate string, enrollments []models.Enrollment) (string, bool) {
	if utf8.RuneCountInString(candidate) < minCandidateLength {
		return "", false
	}
	for _, e := range enrollments {
		name := normalizeText(e.SubjectName)
		if name == "" {
			continue
		}
		if strings.Contains(name, candidate) || strings.Contains(candidate, name) || shareSignificantWord(name, candidate) {
			return e.SubjectName, true
		}
	}
	return "", false
}

func shareSignificantWord(a, b string) bool {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(tokenizeText(a)) {
		if utf8.RuneCountInString(w) > significantWordRunes {
			words[w] = struct{}{}
		}
	}
	for _, w := range strings.Fields(tokenizeText(b)) {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

func inferQueryKind(normalized string) models.QueryKind {
	switch {
	case containsAny(normalized, classroomKeywords):
		return models.QueryClassroom
	case containsAny(normalized, sectionKeywords):
		return models.QuerySection
	case containsAny(normalized, gradeKeywords):
		return models.QueryGrade
	default:
		return models.QueryGeneral
	}
}

func matchTypeFor(kind models.QueryKind) models.MatchType {
	switch kind {
	case models.QueryClassroom:
		return models.MatchClassroom
	case models.QuerySection:
		return models.MatchSection
	default:
		return models.MatchSubject
	}
}
