package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/edubot-api/internal/models"
)

const (
	placeholderUnavailable = "No disponible"
	placeholderSubject     = "Materia no disponible"
	placeholderLevel       = "Sin nivel"
	placeholderProgram     = "Sin carrera"

	noEnrollmentsMessage = "📊 **Información Académica**\n\nNo se encontraron materias inscritas para tu usuario.\n\n" +
		"**Por favor verifica:**\n• Que estés correctamente inscrito en el período actual\n• O contacta con la administración académica"
	noGradesMessage = "📝 **Estado de Calificaciones**\n\nAún no tienes calificaciones registradas. " +
		"Las calificaciones serán publicadas por tus profesores."

	needsAttentionHeading = "⚠️ **Materia que necesita atención**"
	roomToImproveHeading  = "📈 **Tu calificación más baja**"
	roadmapOfferLine      = "¿Quieres que genere un plan de estudio para mejorar? Responde *sí* y lo preparo."
)

func subjectLabel(e models.Enrollment) string {
	return orPlaceholder(e.SubjectName, placeholderSubject)
}

func orPlaceholder(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}

func gradeLabel(e models.Enrollment) string {
	if g, ok := e.GradeValue(); ok {
		return formatGrade(g) + "/100"
	}
	return "Sin calificar"
}

func statusIcon(e models.Enrollment) string {
	if g, ok := e.GradeValue(); ok {
		return TierFor(g).Icon()
	}
	return "⏳"
}

// AverageGrade returns the mean of graded enrollments rounded to two decimals.
func AverageGrade(list []models.Enrollment) (float64, int, bool) {
	graded := models.GradedEnrollments(list)
	if len(graded) == 0 {
		return 0, 0, false
	}
	var sum float64
	for _, e := range graded {
		sum += *e.Grade
	}
	return roundTo2(sum / float64(len(graded))), len(graded), true
}

// BestGrade returns the first enrollment holding the highest grade.
func BestGrade(list []models.Enrollment) (models.Enrollment, bool) {
	return extremeGrade(list, func(candidate, current float64) bool { return candidate > current })
}

// WorstGrade returns the first enrollment holding the lowest grade.
func WorstGrade(list []models.Enrollment) (models.Enrollment, bool) {
	return extremeGrade(list, func(candidate, current float64) bool { return candidate < current })
}

func extremeGrade(list []models.Enrollment, better func(candidate, current float64) bool) (models.Enrollment, bool) {
	var (
		pick  models.Enrollment
		found bool
	)
	for _, e := range list {
		g, ok := e.GradeValue()
		if !ok {
			continue
		}
		if !found || better(g, *pick.Grade) {
			pick = e
			found = true
		}
	}
	return pick, found
}

func averageRemark(avg float64) string {
	switch TierFor(avg) {
	case TierExcellent:
		return "¡Excelente trabajo! 🏆 Mantén ese rendimiento excepcional."
	case TierVeryGood:
		return "Muy buen rendimiento 👍 Estás cerca de la excelencia."
	case TierSatisfactory:
		return "Rendimiento satisfactorio. Con un poco más de esfuerzo puedes subir de nivel."
	default:
		return "💡 **Consejo:** Hay oportunidad de mejorar. Considera:\n• Revisar tus técnicas de estudio\n" +
			"• Pedir ayuda a tus profesores\n• Organizar mejor tu tiempo\n• Formar grupos de estudio"
	}
}

// GradesResponse lists every enrollment with its status and closes with the mean.
func GradesResponse(list []models.Enrollment) string {
	if len(list) == 0 {
		return noEnrollmentsMessage
	}

	var b strings.Builder
	b.WriteString("📊 **Tus Calificaciones**\n\n")
	for _, e := range list {
		fmt.Fprintf(&b, "%s **%s**: %s\n", statusIcon(e), subjectLabel(e), gradeLabel(e))
	}

	avg, count, ok := AverageGrade(list)
	if !ok {
		b.WriteString("\n")
		b.WriteString(noGradesMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s **Promedio General: %.2f/100** (%d materias calificadas)\n\n", TierFor(avg).Icon(), avg, count)
	b.WriteString(averageRemark(avg))

	var failing []string
	for _, e := range list {
		if g, ok := e.GradeValue(); ok && g < PassingGrade {
			failing = append(failing, fmt.Sprintf("• %s (%s)", subjectLabel(e), formatGrade(g)))
		}
	}
	if len(failing) > 0 {
		fmt.Fprintf(&b, "\n\n⚠️ **Materias bajo %s:**\n%s", formatGrade(PassingGrade), strings.Join(failing, "\n"))
	}
	return b.String()
}

// AverageResponse reports the mean of graded enrollments only.
func AverageResponse(list []models.Enrollment) string {
	avg, count, ok := AverageGrade(list)
	if !ok {
		return noGradesMessage
	}
	tier := TierFor(avg)
	return fmt.Sprintf("%s **Tu promedio general es %.2f/100**\n\nCalculado sobre %d materias calificadas. Nivel: %s.\n\n%s",
		tier.Icon(), avg, count, tier.Label(), averageRemark(avg))
}

// BestGradeResponse names the subject with the highest grade.
func BestGradeResponse(list []models.Enrollment) string {
	best, ok := BestGrade(list)
	if !ok {
		return noGradesMessage
	}
	g := *best.Grade
	return fmt.Sprintf("🏆 **Tu mejor calificación**\n\n📚 Materia: **%s**\n🎓 Calificación: **%s/100**\n📈 Nivel: %s\n\n%s",
		subjectLabel(best), formatGrade(g), TierFor(g).Label(),
		"¡Sigue así! Aprovecha lo que te funciona en esta materia para las demás.")
}

// WorstGradeResponse names the subject with the lowest grade. Grades under the passing
// threshold get study links and a roadmap offer.
func WorstGradeResponse(list []models.Enrollment) string {
	worst, ok := WorstGrade(list)
	if !ok {
		return noGradesMessage
	}
	g := *worst.Grade
	name := subjectLabel(worst)

	var b strings.Builder
	if g < PassingGrade {
		b.WriteString(needsAttentionHeading + "\n\n")
		fmt.Fprintf(&b, "📚 Materia: **%s**\n🎓 Calificación: **%s/100**\n", name, formatGrade(g))
		fmt.Fprintf(&b, "📉 Te faltan %s puntos para alcanzar %s.\n\n", formatGrade(PassingGrade-g), formatGrade(PassingGrade))
		b.WriteString(renderStudyResources(name))
		b.WriteString("\n" + roadmapOfferLine)
		return b.String()
	}

	b.WriteString(roomToImproveHeading + "\n\n")
	fmt.Fprintf(&b, "📚 Materia: **%s**\n🎓 Calificación: **%s/100**\n\n", name, formatGrade(g))
	b.WriteString("Todas tus materias están aprobadas 🎉 Aún tienes espacio para mejorar en esta.")
	return b.String()
}

// NeedsAttention reports whether the lowest grade is under the passing threshold.
func NeedsAttention(list []models.Enrollment) bool {
	worst, ok := WorstGrade(list)
	return ok && *worst.Grade < PassingGrade
}

type enrollmentGroup struct {
	name  string
	items []models.Enrollment
}

// groupBy preserves first-appearance order of keys.
func groupBy(list []models.Enrollment, key func(models.Enrollment) string) []enrollmentGroup {
	index := make(map[string]int)
	var groups []enrollmentGroup
	for _, e := range list {
		k := key(e)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, enrollmentGroup{name: k})
		}
		groups[i].items = append(groups[i].items, e)
	}
	return groups
}

func levelKey(e models.Enrollment) string   { return orPlaceholder(e.LevelName, placeholderLevel) }
func programKey(e models.Enrollment) string { return orPlaceholder(e.ProgramName, placeholderProgram) }

// SubjectsResponse groups enrollments by level.
func SubjectsResponse(list []models.Enrollment) string {
	var b strings.Builder
	b.WriteString("📖 **Tus Materias Inscritas**\n\n")
	for _, group := range groupBy(list, levelKey) {
		fmt.Fprintf(&b, "📚 **%s**\n", group.name)
		for _, e := range group.items {
			fmt.Fprintf(&b, "   • **%s**\n", subjectLabel(e))
			fmt.Fprintf(&b, "      🏠 Aula: %s\n", orPlaceholder(e.Classroom, placeholderUnavailable))
			fmt.Fprintf(&b, "      👥 Paralelo: %s\n", orPlaceholder(e.SectionNumber, placeholderUnavailable))
			fmt.Fprintf(&b, "      📊 Calificación: %s\n\n", gradeLabel(e))
		}
	}
	fmt.Fprintf(&b, "📈 **Total de materias:** %d", len(list))
	return b.String()
}

// ClassroomResponse lists classroom and section per subject, narrowed to the matched
// subject when the matcher found one.
func ClassroomResponse(list []models.Enrollment, match models.MatchResult) string {
	if match.Found() {
		for _, e := range list {
			if e.SubjectName == match.SubjectName {
				return fmt.Sprintf("🏫 **%s**\n\n🏠 Aula: **%s**\n👥 Paralelo: %s\n📈 Nivel: %s",
					subjectLabel(e), orPlaceholder(e.Classroom, placeholderUnavailable),
					orPlaceholder(e.SectionNumber, placeholderUnavailable), orPlaceholder(e.LevelName, placeholderUnavailable))
			}
		}
	}

	var b strings.Builder
	b.WriteString("🏫 **Tus Aulas y Paralelos**\n\n")
	for _, e := range list {
		fmt.Fprintf(&b, "📚 **%s**\n   🏠 Aula: **%s**\n   👥 Paralelo: %s\n\n", subjectLabel(e),
			orPlaceholder(e.Classroom, placeholderUnavailable), orPlaceholder(e.SectionNumber, placeholderUnavailable))
	}
	return strings.TrimRight(b.String(), "\n")
}

// SubjectDetailResponse describes one subject or lists the available ones when it is unknown.
func SubjectDetailResponse(list []models.Enrollment, subject string, matcher *EntityMatcher) string {
	e, ok := matcher.FindEnrollment(subject, list)
	if !ok {
		var b strings.Builder
		fmt.Fprintf(&b, "🔍 No encontré la materia \"%s\" entre tus inscripciones.\n\n**Tus materias:**\n", subject)
		for _, item := range list {
			fmt.Fprintf(&b, "• %s\n", subjectLabel(item))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n\n", statusIcon(e), subjectLabel(e))
	fmt.Fprintf(&b, "🎓 Calificación: **%s**\n", gradeLabel(e))
	fmt.Fprintf(&b, "🏠 Aula: %s\n", orPlaceholder(e.Classroom, placeholderUnavailable))
	fmt.Fprintf(&b, "👥 Paralelo: %s\n", orPlaceholder(e.SectionNumber, placeholderUnavailable))
	fmt.Fprintf(&b, "📈 Nivel: %s\n", orPlaceholder(e.LevelName, placeholderUnavailable))
	fmt.Fprintf(&b, "🎓 Carrera: %s\n", orPlaceholder(e.ProgramName, placeholderUnavailable))
	if g, ok := e.GradeValue(); ok {
		b.WriteString("\n" + averageRemark(g))
		if g < PassingGrade {
			b.WriteString("\n\n" + renderStudyResources(subjectLabel(e)))
		}
	} else {
		b.WriteString("\n⏳ Esta materia aún no tiene calificación registrada.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// AcademicOverviewResponse groups enrollments by program then level and closes with a summary.
func AcademicOverviewResponse(list []models.Enrollment) string {
	if len(list) == 0 {
		return noEnrollmentsMessage
	}

	var b strings.Builder
	b.WriteString("🎓 **Tu Información Académica Completa**\n\n")
	for _, program := range groupBy(list, programKey) {
		fmt.Fprintf(&b, "**🎓 %s**\n", program.name)
		for _, level := range groupBy(program.items, levelKey) {
			fmt.Fprintf(&b, "  📈 %s:\n", level.name)
			for _, e := range level.items {
				fmt.Fprintf(&b, "    • %s - Aula: %s - Nota: %s\n", subjectLabel(e),
					orPlaceholder(e.Classroom, placeholderUnavailable), gradeLabel(e))
			}
		}
		b.WriteString("\n")
	}

	avg, count, ok := AverageGrade(list)
	avgText := placeholderUnavailable
	if ok {
		avgText = fmt.Sprintf("%.2f/100", avg)
	}
	b.WriteString("📊 **Resumen:**\n")
	fmt.Fprintf(&b, "• Total de materias: %d\n", len(list))
	fmt.Fprintf(&b, "• Materias calificadas: %d\n", count)
	fmt.Fprintf(&b, "• Promedio general: %s", avgText)
	return b.String()
}
