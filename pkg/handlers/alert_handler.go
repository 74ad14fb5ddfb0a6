package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// AlertHandler handles data quality alert HTTP requests.
type AlertHandler struct {
	history services.HealthHistoryService
	logger  *zap.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(history services.HealthHistoryService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers the alert handler's routes on the given mux.
func (h *AlertHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/data-health/alerts"

	mux.HandleFunc("GET "+base, h.ListAlerts)
	mux.HandleFunc("POST "+base+"/{alert_id}/resolve", h.ResolveAlert)
}

// ListAlerts handles GET /api/data-health/alerts?schema_type=&open=&limit=
// Only open alerts are listed unless open=false.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.history.Alerts(r.Context(),
		r.URL.Query().Get("schema_type"),
		parseBool(r, "open", true),
		parseLimit(r))
	if err != nil {
		writeServiceError(w, err, "list_alerts_failed", h.logger)
		return
	}

	if alerts == nil {
		alerts = make([]*models.QualityAlert, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: alerts}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ResolveAlert handles POST /api/data-health/alerts/{alert_id}/resolve
func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := ParseAlertID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.history.ResolveAlert(r.Context(), alertID); err != nil {
		writeServiceError(w, err, "resolve_alert_failed", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "Alert resolved successfully",
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
