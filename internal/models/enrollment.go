package models

import (
	"math"
	"time"
)

// Enrollment is a student's registration in one subject section, as returned by the
// student-information backend and normalized at the gateway boundary.
type Enrollment struct {
	ID            string     `json:"id"`
	SubjectName   string     `json:"subject_name,omitempty"`
	Grade         *float64   `json:"grade,omitempty"`
	Classroom     string     `json:"classroom,omitempty"`
	SectionNumber string     `json:"section_number,omitempty"`
	ProgramName   string     `json:"program_name,omitempty"`
	LevelName     string     `json:"level_name,omitempty"`
	EnrolledAt    *time.Time `json:"enrolled_at,omitempty"`
}

// Graded reports whether the enrollment carries a usable grade. Nil and NaN are ungraded.
func (e Enrollment) Graded() bool {
	return e.Grade != nil && !math.IsNaN(*e.Grade) && !math.IsInf(*e.Grade, 0)
}

// GradeValue returns the grade and whether it is usable.
func (e Enrollment) GradeValue() (float64, bool) {
	if !e.Graded() {
		return 0, false
	}
	return *e.Grade, true
}

// GradedEnrollments keeps input order.
func GradedEnrollments(list []Enrollment) []Enrollment {
	out := make([]Enrollment, 0, len(list))
	for _, e := range list {
		if e.Graded() {
			out = append(out, e)
		}
	}
	return out
}

// StudentProfile is the subset of /perfil/ the assistant uses.
type StudentProfile struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"nombre"`
	Cedula string `json:"cedula,omitempty"`
}
