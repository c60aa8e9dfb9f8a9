package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edubot-api/internal/models"
	"github.com/noah-isme/edubot-api/internal/service"
	"github.com/noah-isme/edubot-api/pkg/response"
)

type academicReports interface {
	Summary(ctx context.Context, user models.UserContext) (*service.AcademicSummary, error)
	Export(ctx context.Context, user models.UserContext, format string) (*service.AcademicReport, error)
}

// ReportHandler exposes academic summary and export endpoints.
type ReportHandler struct {
	reports academicReports
}

// NewReportHandler constructs handler.
func NewReportHandler(reports academicReports) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Summary godoc
// @Summary Academic overview of the signed-in student
// @Tags Academic
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /academic/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reports.Summary(c.Request.Context(), userFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Export godoc
// @Summary Download grades and improvement plan
// @Tags Academic
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /academic/report [get]
func (h *ReportHandler) Export(c *gin.Context) {
	report, err := h.reports.Export(c.Request.Context(), userFromContext(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Payload)
}
