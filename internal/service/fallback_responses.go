package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/edubot-api/internal/models"
)

var ecuadorTime = time.FixedZone("ECT", -5*60*60)

const (
	authRequiredMessage = "🔐 **Inicia sesión para ver tu información académica**\n\n" +
		"Para consultar calificaciones, materias, promedios o aulas necesito que inicies sesión en el portal. " +
		"Cuando lo hagas, vuelve a preguntarme y te mostraré tus datos reales."
	imageUnavailableMessage = "El servicio de IA no está disponible en este momento, así que no puedo analizar imágenes. " +
		"Puedes escribirme tu pregunta en texto."
	imageFailedMessage = "Lo siento, hubo un error al procesar la imagen. Verifica que el archivo sea válido y no sea muy grande."
	defaultImagePrompt = "Analiza esta imagen y descríbeme qué ves."
	greetingReply      = "¡Hola! Soy EduBot, tu asistente educativo inteligente. ¿En qué puedo ayudarte hoy con tus estudios?"
)

func greetingFallback(name string) string {
	who := ""
	if name != "" {
		who = " " + name
	}
	return fmt.Sprintf("¡Hola%s! 👋 Soy EduBot, tu asistente educativo.\n\n"+
		"Ahora mismo funciono en modo básico, pero puedo mostrarte tus calificaciones, promedio, materias y aulas "+
		"si inicias sesión.\n\n¿En qué puedo ayudarte?", who)
}

func thanksFallback(name string) string {
	if name != "" {
		return fmt.Sprintf("¡Con gusto, %s! 😊 Si necesitas algo más sobre tus estudios, aquí estoy.", name)
	}
	return "¡Con gusto! 😊 Si necesitas algo más sobre tus estudios, aquí estoy."
}

const gradeFallback = "📊 **Consulta de Calificaciones**\n\nPara ver tus calificaciones específicas necesitas:\n" +
	"1. Iniciar sesión en la plataforma\n2. Volver a preguntarme por tus notas, promedio o materias"

const genericFallback = "🤖 **EduBot - Modo Básico**\n\nEl asistente conversacional no está disponible en este momento.\n\n" +
	"**Aún puedo ayudarte con:**\n• Tus calificaciones y promedio\n• Tu mejor y peor nota\n" +
	"• Tus materias, aulas y paralelos\n• Un plan de estudio para mejorar\n\n¿En qué más puedo asistirte?"

// fallbackReply picks a canned reply by trivial keyword checks.
func fallbackReply(classifier *IntentClassifier, message string, user models.UserContext) string {
	switch {
	case classifier.IsGreeting(message):
		return greetingFallback(user.Name())
	case classifier.IsThanks(message):
		return thanksFallback(user.Name())
	case classifier.IsGradeRelated(message):
		return gradeFallback
	default:
		return genericFallback
	}
}

// systemPrompt builds the conversational model instruction for the current user.
func systemPrompt(user models.UserContext, now time.Time) string {
	name := user.Name()
	if name == "" {
		name = placeholderUnavailable
	}
	session := "No"
	if user.Authenticated {
		session = "Sí"
	}

	var b strings.Builder
	b.WriteString("Eres \"EduBot\", un asistente virtual especializado en educación universitaria.\n\n")
	b.WriteString("CONTEXTO DEL USUARIO:\n")
	fmt.Fprintf(&b, "- Nombre: %s\n", name)
	fmt.Fprintf(&b, "- Sesión activa: %s\n", session)
	fmt.Fprintf(&b, "- Hora local (Ecuador): %s\n\n", now.In(ecuadorTime).Format("02/01/2006 15:04"))
	b.WriteString("INFORMACIÓN DISPONIBLE:\n")
	b.WriteString("Las calificaciones usan una escala de 0 a 100; 70 es la nota mínima para aprobar.\n")
	b.WriteString("Para consultar calificaciones, materias o aulas el usuario debe iniciar sesión en el portal.\n\n")
	b.WriteString("RESPONDE EN ESPAÑOL con claridad, empatía y enfoque educativo. ")
	b.WriteString("Si el usuario menciona una materia con nota baja, recomiéndale material de apoyo.")
	return b.String()
}

func enrichWithName(message string, user models.UserContext) string {
	if name := user.Name(); name != "" {
		return fmt.Sprintf("[Usuario: %s] %s", name, message)
	}
	return message
}
