// internal/api/handler/analytics.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"circlepool/internal/insights"
	"circlepool/internal/util"
)

// AnalyticsHandler handles HTTP requests for spending analytics.
type AnalyticsHandler struct {
	service insights.Service
	logger  *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc insights.Service, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		logger:  logger,
	}
}

// Overview handles the spending overview request.
// GET /analytics/overview?user_id=
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	overview, err := h.service.Overview(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, overview)
}

// Insights handles the spending insights request.
// GET /analytics/insights?user_id=
func (h *AnalyticsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	tips, err := h.service.Insights(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"insights": tips})
}
