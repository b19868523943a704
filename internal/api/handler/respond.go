// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"circlepool/internal/util"
)

// DefaultTimeout bounds request handling at the router level.
const DefaultTimeout = 30 * time.Second

// respondWithJSON sends payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors to HTTP status codes.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput), util.IsError(err, util.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrWrongMode), util.IsError(err, util.ErrNoMembers):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrInsufficientPool), util.IsError(err, util.ErrInsufficientAllocatedBalance):
		// 400 with the specific shortfall so clients can show it.
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotHost), util.IsError(err, util.ErrNotMember), util.IsError(err, util.ErrTargetNotMember):
		statusCode = http.StatusForbidden
		message = "Not allowed for this circle"
	case util.IsError(err, util.ErrAlreadyMember):
		statusCode = http.StatusConflict
		message = "Already a member of this circle"
	case util.IsError(err, util.ErrDuplicateEntry):
		statusCode = http.StatusConflict
		message = "Already exists"
	case util.IsError(err, util.ErrNotFound), util.IsError(err, util.ErrCircleNotFound), util.IsError(err, util.ErrUserNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = err.Error()
	case util.IsError(err, util.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		message = "Try again later"
	case util.IsError(err, util.ErrClassificationUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "Insights are not available right now"
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(w, logger, statusCode, map[string]string{"error": message})
}
