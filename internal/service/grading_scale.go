package service

import (
	"math"
	"strconv"
)

// Grades are on a 0-100 scale everywhere in the assistant.
const (
	MaxGrade       = 100.0
	PassingGrade   = 70.0
	GoodGrade      = 80.0
	ExcellentGrade = 90.0

	roadmapPointsPerWeek = 5.0
)

// GradeTier buckets a grade on the scale above.
type GradeTier int

const (
	TierInsufficient GradeTier = iota
	TierSatisfactory
	TierVeryGood
	TierExcellent
)

// TierFor classifies a grade.
func TierFor(grade float64) GradeTier {
	switch {
	case grade >= ExcellentGrade:
		return TierExcellent
	case grade >= GoodGrade:
		return TierVeryGood
	case grade >= PassingGrade:
		return TierSatisfactory
	default:
		return TierInsufficient
	}
}

// Icon is the status prefix used in replies.
func (t GradeTier) Icon() string {
	switch t {
	case TierExcellent:
		return "🎯"
	case TierVeryGood:
		return "⭐"
	case TierSatisfactory:
		return "📊"
	default:
		return "⚠️"
	}
}

// Label names the tier in Spanish.
func (t GradeTier) Label() string {
	switch t {
	case TierExcellent:
		return "Excelente"
	case TierVeryGood:
		return "Muy bueno"
	case TierSatisfactory:
		return "Satisfactorio"
	default:
		return "Insuficiente"
	}
}

// formatGrade prints whole grades without decimals and others with one.
func formatGrade(grade float64) string {
	if grade == math.Trunc(grade) {
		return strconv.FormatFloat(grade, 'f', 0, 64)
	}
	return strconv.FormatFloat(grade, 'f', 1, 64)
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
