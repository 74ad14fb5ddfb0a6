package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// AssessmentSummary is the headline returned next to a full report.
type AssessmentSummary struct {
	SchemaType      models.SchemaType `json:"schema_type"`
	OverallScore    float64           `json:"overall_score"`
	HealthGrade     string            `json:"health_grade"`
	TotalRecords    int64             `json:"total_records"`
	ColumnsAnalyzed int               `json:"columns_analyzed"`
	CriticalIssues  int               `json:"critical_issues"`
}

// AssessmentResponse is the data payload of an assessment.
type AssessmentResponse struct {
	AssessmentSummary AssessmentSummary    `json:"assessment_summary"`
	Report            *models.HealthReport `json:"report"`
	HistoryID         string               `json:"history_id,omitempty"`
	AlertsRaised      int                  `json:"alerts_raised,omitempty"`
}

// NewAssessmentResponse summarizes a report.
func NewAssessmentResponse(report *models.HealthReport) AssessmentResponse {
	return AssessmentResponse{
		AssessmentSummary: AssessmentSummary{
			SchemaType:      report.SchemaType,
			OverallScore:    report.OverallHealth.Score,
			HealthGrade:     report.OverallHealth.Grade,
			TotalRecords:    report.TotalRecords,
			ColumnsAnalyzed: len(report.ColumnAnalysis),
			CriticalIssues:  report.CriticalIssueCount(),
		},
		Report: report,
	}
}

// DataHealthHandler serves assessments and their history.
type DataHealthHandler struct {
	health  services.DataHealthService
	history services.HealthHistoryService // nil when history is disabled
	logger  *zap.Logger
}

// NewDataHealthHandler creates a new data health handler. history may be nil.
func NewDataHealthHandler(health services.DataHealthService, history services.HealthHistoryService, logger *zap.Logger) *DataHealthHandler {
	return &DataHealthHandler{
		health:  health,
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers the data health routes on the given mux.
func (h *DataHealthHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/data-health"

	mux.HandleFunc("GET "+base+"/status", h.Status)
	mux.HandleFunc("GET "+base+"/{schema_type}", h.Assess)
	mux.HandleFunc("GET /api/data-health-llm/{schema_type}", h.AssessLLM)
	mux.HandleFunc("GET "+base+"/{schema_type}/history", h.History)
	mux.HandleFunc("GET "+base+"/{schema_type}/history/latest", h.LatestHistory)
}

// Status handles GET /api/data-health/status
func (h *DataHealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: h.health.Status()}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Assess handles GET /api/data-health/{schema_type}
// ?record=true stores the report in history when history is enabled.
func (h *DataHealthHandler) Assess(w http.ResponseWriter, r *http.Request) {
	h.assess(w, r, h.health.Assess, "assessment_failed")
}

// AssessLLM handles GET /api/data-health-llm/{schema_type}
func (h *DataHealthHandler) AssessLLM(w http.ResponseWriter, r *http.Request) {
	h.assess(w, r, h.health.AssessLLM, "llm_assessment_failed")
}

func (h *DataHealthHandler) assess(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, schemaType string) (*models.HealthReport, error),
	errorCode string,
) {
	schemaType := r.PathValue("schema_type")

	report, err := run(r.Context(), schemaType)
	if err != nil {
		writeServiceError(w, err, errorCode, h.logger.With(zap.String("schema_type", schemaType)))
		return
	}

	resp := NewAssessmentResponse(report)
	if h.history != nil && parseBool(r, "record", false) {
		entry, alerts, err := h.history.Record(r.Context(), report)
		if err != nil {
			// The assessment itself succeeded; a failed write is only logged.
			h.logger.Error("Failed to record assessment",
				zap.String("schema_type", schemaType),
				zap.Error(err))
		} else {
			resp.HistoryID = entry.ID.String()
			resp.AlertsRaised = len(alerts)
		}
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/data-health/{schema_type}/history?limit=
func (h *DataHealthHandler) History(w http.ResponseWriter, r *http.Request) {
	if !h.requireHistory(w) {
		return
	}

	entries, err := h.history.List(r.Context(), r.PathValue("schema_type"), parseLimit(r))
	if err != nil {
		writeServiceError(w, err, "list_history_failed", h.logger)
		return
	}
	if entries == nil {
		entries = make([]*models.HealthHistoryEntry, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entries}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// LatestHistory handles GET /api/data-health/{schema_type}/history/latest
func (h *DataHealthHandler) LatestHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireHistory(w) {
		return
	}

	entry, err := h.history.Latest(r.Context(), r.PathValue("schema_type"))
	if err != nil {
		writeServiceError(w, err, "latest_history_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DataHealthHandler) requireHistory(w http.ResponseWriter) bool {
	if h.history != nil {
		return true
	}
	if err := ErrorResponse(w, http.StatusServiceUnavailable, "history_disabled", "Assessment history is not enabled"); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
	return false
}
