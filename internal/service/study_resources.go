package service

import (
	"fmt"
	"net/url"
	"strings"
)

// StudyResource is an externally built search link for a subject.
type StudyResource struct {
	Label string
	URL   string
}

var studyResourceTemplates = []struct {
	label    string
	template string
	suffix   string
}{
	{label: "🎥 Videos en YouTube", template: "https://www.youtube.com/results?search_query=%s", suffix: " tutorial"},
	{label: "📄 Artículos en Google Scholar", template: "https://scholar.google.com/scholar?q=%s"},
	{label: "🎓 Cursos en Coursera", template: "https://www.coursera.org/search?query=%s"},
	{label: "📘 Khan Academy", template: "https://es.khanacademy.org/search?page_search_query=%s"},
	{label: "✏️ Ejercicios resueltos", template: "https://www.google.com/search?q=%s", suffix: " ejercicios resueltos"},
}

// StudyResourcesFor builds the fixed set of search links for subject. Nothing is fetched.
func StudyResourcesFor(subject string) []StudyResource {
	subject = strings.TrimSpace(subject)
	out := make([]StudyResource, 0, len(studyResourceTemplates))
	for _, t := range studyResourceTemplates {
		out = append(out, StudyResource{
			Label: t.label,
			URL:   fmt.Sprintf(t.template, url.QueryEscape(subject+t.suffix)),
		})
	}
	return out
}

func renderStudyResources(subject string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📚 **Recursos para %s:**\n", subject)
	for _, r := range StudyResourcesFor(subject) {
		fmt.Fprintf(&b, "• [%s](%s)\n", r.Label, r.URL)
	}
	return b.String()
}
