package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/edubot-api/internal/models"
	appErrors "github.com/noah-isme/edubot-api/pkg/errors"
	"github.com/noah-isme/edubot-api/pkg/export"
)

const defaultStudentName = "Usuario"

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

var reportHeaders = []string{"Materia", "Nivel", "Carrera", "Aula", "Paralelo", "Calificación", "Estado"}

// ProfileSource fetches the authenticated student's profile.
type ProfileSource interface {
	GetProfile(ctx context.Context, token string) (*models.StudentProfile, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// AcademicSummary is the structured overview behind the summary endpoint.
type AcademicSummary struct {
	StudentName    string        `json:"student_name"`
	TotalSubjects  int           `json:"total_subjects"`
	GradedSubjects int           `json:"graded_subjects"`
	Average        *float64      `json:"average,omitempty"`
	Overview       string        `json:"overview"`
	Roadmap        []RoadmapItem `json:"roadmap"`
}

// AcademicReport is a rendered export.
type AcademicReport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService builds academic summaries and exports for the authenticated student.
type ReportService struct {
	enrollments EnrollmentSource
	profiles    ProfileSource
	csv         csvRenderer
	pdf         pdfRenderer
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportService constructs the service.
func NewReportService(enrollments EnrollmentSource, profiles ProfileSource, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		enrollments: enrollments,
		profiles:    profiles,
		csv:         csv,
		pdf:         pdf,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

type studentRecord struct {
	name        string
	enrollments []models.Enrollment
}

// load fetches profile and enrollments concurrently. Only the enrollment fetch can fail the call.
func (s *ReportService) load(ctx context.Context, user models.UserContext) (*studentRecord, error) {
	if !user.Authenticated || user.Token == "" {
		return nil, appErrors.ErrAuthRequired
	}

	record := &studentRecord{name: user.Name()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		list, err := s.enrollments.ListEnrollments(gctx, user.Token)
		s.metrics.ObserveGatewayFetch("enrollments", err, time.Since(start))
		if err != nil {
			return appErrors.Wrap(&GatewayError{Op: "list enrollments", Err: err},
				appErrors.ErrGateway.Code, appErrors.ErrGateway.Status, appErrors.ErrGateway.Message)
		}
		record.enrollments = list
		return nil
	})

	var profileName string
	if s.profiles != nil {
		g.Go(func() error {
			start := time.Now()
			profile, err := s.profiles.GetProfile(gctx, user.Token)
			s.metrics.ObserveGatewayFetch("profile", err, time.Since(start))
			if err != nil {
				s.logger.Warn("profile fetch failed", zap.Error(err))
				return nil
			}
			if profile != nil {
				profileName = strings.TrimSpace(profile.Name)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if profileName != "" {
		record.name = profileName
	}
	if record.name == "" {
		record.name = defaultStudentName
	}
	return record, nil
}

// Summary returns the overview text plus the aggregates it is built from.
func (s *ReportService) Summary(ctx context.Context, user models.UserContext) (*AcademicSummary, error) {
	record, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}

	summary := &AcademicSummary{
		StudentName:   record.name,
		TotalSubjects: len(record.enrollments),
		Overview:      AcademicOverviewResponse(record.enrollments),
		Roadmap:       BuildRoadmap(record.enrollments),
	}
	if avg, count, ok := AverageGrade(record.enrollments); ok {
		summary.Average = &avg
		summary.GradedSubjects = count
	}
	if summary.Roadmap == nil {
		summary.Roadmap = []RoadmapItem{}
	}
	return summary, nil
}

// Export renders the enrollment table as CSV or PDF. The PDF carries the improvement plan as notes.
func (s *ReportService) Export(ctx context.Context, user models.UserContext, format string) (*AcademicReport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	record, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}

	dataset := enrollmentDataset(record.enrollments)
	stamp := s.now().In(ecuadorTime).Format("20060102")

	switch format {
	case ReportFormatPDF:
		payload, err := s.pdf.Render(export.Document{
			Title:    "Reporte Académico",
			Subtitle: fmt.Sprintf("%s - %s", record.name, s.now().In(ecuadorTime).Format("02/01/2006")),
			Table:    dataset,
			Notes:    reportNotes(record.enrollments),
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &AcademicReport{Filename: "reporte-academico-" + stamp + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &AcademicReport{Filename: "reporte-academico-" + stamp + ".csv", ContentType: "text/csv; charset=utf-8", Payload: payload}, nil
	}
}

func enrollmentDataset(list []models.Enrollment) export.Dataset {
	rows := make([]map[string]string, 0, len(list))
	for _, e := range list {
		grade, status := "", "Sin calificar"
		if g, ok := e.GradeValue(); ok {
			grade = formatGrade(g)
			status = TierFor(g).Label()
		}
		rows = append(rows, map[string]string{
			"Materia":      subjectLabel(e),
			"Nivel":        orPlaceholder(e.LevelName, placeholderLevel),
			"Carrera":      orPlaceholder(e.ProgramName, placeholderProgram),
			"Aula":         orPlaceholder(e.Classroom, placeholderUnavailable),
			"Paralelo":     orPlaceholder(e.SectionNumber, placeholderUnavailable),
			"Calificación": grade,
			"Estado":       status,
		})
	}
	return export.Dataset{Headers: reportHeaders, Rows: rows}
}

func reportNotes(list []models.Enrollment) []string {
	var notes []string
	if avg, count, ok := AverageGrade(list); ok {
		notes = append(notes, fmt.Sprintf("Promedio general: %.2f/100 (%d materias calificadas)", avg, count))
	} else {
		notes = append(notes, "Promedio general: sin calificaciones registradas")
	}

	items := BuildRoadmap(list)
	if len(items) == 0 {
		return append(notes, "Plan de mejora: no hay materias bajo la nota mínima de aprobación.")
	}
	notes = append(notes, "Plan de mejora:")
	for _, item := range items {
		notes = append(notes, fmt.Sprintf("%s: %s/100, %d semanas estimadas para llegar a %s.",
			item.SubjectName, formatGrade(item.Grade), item.WeeksNeeded, formatGrade(PassingGrade)))
		for _, w := range item.Weeks {
			notes = append(notes, fmt.Sprintf("  Semana %d: %s", w.Number, w.Focus))
		}
	}
	return notes
}
