package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/edubot-api/internal/models"
)

// RoadmapWeek is one step of a study plan.
type RoadmapWeek struct {
	Number int    `json:"number"`
	Focus  string `json:"focus"`
}

// RoadmapItem is the study plan for one subject under the passing threshold.
type RoadmapItem struct {
	SubjectName  string        `json:"subject_name"`
	Grade        float64       `json:"grade"`
	PointsNeeded float64       `json:"points_needed"`
	WeeksNeeded  int           `json:"weeks_needed"`
	Weeks        []RoadmapWeek `json:"weeks"`
}

var studyTechniques = []string{
	"⏱️ **Técnica Pomodoro:** bloques de 25 minutos de estudio con 5 de descanso.",
	"🧠 **Recuperación activa:** cierra el libro y explica el tema con tus palabras.",
	"🔁 **Repetición espaciada:** repasa cada tema a los 1, 3 y 7 días.",
	"👩‍🏫 **Método Feynman:** enseña el tema a un compañero para detectar vacíos.",
	"🤝 **Tutorías y grupos de estudio:** consulta dudas con tu profesor cada semana.",
}

// WeeksNeeded is ceil((passing - grade) / 5) for grades under the passing threshold, else 0.
func WeeksNeeded(grade float64) int {
	if grade >= PassingGrade {
		return 0
	}
	return int(math.Ceil((PassingGrade - grade) / roadmapPointsPerWeek))
}

// BuildRoadmap plans every graded subject under the passing threshold, in input order.
func BuildRoadmap(list []models.Enrollment) []RoadmapItem {
	var items []RoadmapItem
	for _, e := range list {
		g, ok := e.GradeValue()
		if !ok || g >= PassingGrade {
			continue
		}
		name := subjectLabel(e)
		weeks := WeeksNeeded(g)
		items = append(items, RoadmapItem{
			SubjectName:  name,
			Grade:        g,
			PointsNeeded: PassingGrade - g,
			WeeksNeeded:  weeks,
			Weeks:        planWeeks(name, weeks),
		})
	}
	return items
}

func planWeeks(subject string, total int) []RoadmapWeek {
	if total == 1 {
		return []RoadmapWeek{{Number: 1, Focus: fmt.Sprintf("Diagnóstico y práctica intensiva de %s: identifica tus errores y resuelve ejercicios cada día", subject)}}
	}
	weeks := make([]RoadmapWeek, 0, total)
	for n := 1; n <= total; n++ {
		var focus string
		switch {
		case n == 1:
			focus = fmt.Sprintf("Diagnóstico: revisa tus evaluaciones de %s e identifica los temas con más errores", subject)
		case n == total:
			focus = "Simulacro: resuelve una evaluación completa con tiempo limitado y revísala con tu profesor"
		case n%2 == 0:
			focus = fmt.Sprintf("Fundamentos: repasa la teoría de %s con resúmenes y mapas conceptuales", subject)
		default:
			focus = fmt.Sprintf("Práctica: resuelve al menos 10 ejercicios de %s y corrige cada error", subject)
		}
		weeks = append(weeks, RoadmapWeek{Number: n, Focus: focus})
	}
	return weeks
}

// RoadmapResponse renders the plan for every subject under the passing threshold.
func RoadmapResponse(list []models.Enrollment) string {
	items := BuildRoadmap(list)

	var b strings.Builder
	if len(items) == 0 {
		fmt.Fprintf(&b, "🎉 **¡No tienes materias en riesgo!**\n\nTodas tus calificaciones están en %s/100 o más. ", formatGrade(PassingGrade))
		b.WriteString("Estas técnicas te ayudarán a mantener y subir tu rendimiento:\n\n")
		b.WriteString(strings.Join(studyTechniques, "\n"))
		return b.String()
	}

	b.WriteString("🗺️ **Tu Plan de Mejora Académica**\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "📚 **%s** (actual: %s/100, meta: %s/100)\n", item.SubjectName, formatGrade(item.Grade), formatGrade(PassingGrade))
		fmt.Fprintf(&b, "⏳ Semanas estimadas: %d\n", item.WeeksNeeded)
		for _, w := range item.Weeks {
			fmt.Fprintf(&b, "   • Semana %d: %s\n", w.Number, w.Focus)
		}
		b.WriteString("\n")
		b.WriteString(renderStudyResources(item.SubjectName))
		b.WriteString("\n")
	}
	b.WriteString("💡 **Técnicas de estudio recomendadas:**\n")
	b.WriteString(strings.Join(studyTechniques, "\n"))
	return b.String()
}
