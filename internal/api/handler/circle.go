// internal/api/handler/circle.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"circlepool/internal/service"
	"circlepool/internal/util"
)

// CircleHandler handles HTTP requests related to circles and their money
// movements.
type CircleHandler struct {
	service service.CircleService
	logger  *slog.Logger
}

// NewCircleHandler creates a new CircleHandler.
func NewCircleHandler(svc service.CircleService, logger *slog.Logger) *CircleHandler {
	return &CircleHandler{
		service: svc,
		logger:  logger,
	}
}

func circleID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "circleID"), 10, 64)
	if err != nil {
		return 0, util.ErrInvalidInput
	}
	return id, nil
}

func queryUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		return 0, util.ErrInvalidInput
	}
	return id, nil
}

// CreateCircleRequest represents the request body for circle creation.
type CreateCircleRequest struct {
	HostUserID     int64           `json:"host_user_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	RequiredAmount decimal.Decimal `json:"required_amount"`
	AutoSplit      bool            `json:"auto_split"`
	MemberUpiIDs   []string        `json:"member_upi_ids"`
}

// CreateCircle handles the circle creation request.
// POST /circles
func (h *CircleHandler) CreateCircle(w http.ResponseWriter, r *http.Request) {
	var req CreateCircleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	circle, err := h.service.CreateCircle(r.Context(), req.HostUserID, service.CreateCircleParams{
		Name:           req.Name,
		Description:    req.Description,
		RequiredAmount: req.RequiredAmount,
		AutoSplit:      req.AutoSplit,
		MemberUpiIDs:   req.MemberUpiIDs,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, circle)
}

// GetCircle handles the fetch-circle request.
// GET /circles/{circleID}?user_id=
func (h *CircleHandler) GetCircle(w http.ResponseWriter, r *http.Request) {
	id, err := circleID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	userID, err := queryUserID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	circle, err := h.service.GetCircle(r.Context(), id, userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, circle)
}

// ListCircles handles the list-circles request.
// GET /circles?user_id=
func (h *CircleHandler) ListCircles(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	circles, err := h.service.ListCircles(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"circles": circles})
}

// JoinCircleRequest represents the request body for joining a circle.
type JoinCircleRequest struct {
	UserID int64 `json:"user_id"`
}

// JoinCircle handles the join request.
// POST /circles/{circleID}/join
func (h *CircleHandler) JoinCircle(w http.ResponseWriter, r *http.Request) {
	id, err := circleID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	var req JoinCircleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	circle, err := h.service.JoinCircle(r.Context(), id, req.UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, circle)
}

// ContributeRequest represents the request body for a contribution.
type ContributeRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Contribute handles the contribution request.
// POST /circles/{circleID}/contributions
func (h *CircleHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	id, err := circleID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	var req ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	circle, err := h.service.Contribute(r.Context(), id, req.UserID, req.Amount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message":      "Contribution successful",
		"circle_id":    circle.ID,
		"pool_balance": circle.PoolBalance,
		"members":      circle.Members,
	})
}

// SetAllocationLimitRequest represents the request body for an equal
// allocation distribution.
type SetAllocationLimitRequest struct {
	HostUserID int64           `json:"host_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// SetAllocationLimit handles the equal distribution request.
// POST /circles/{circleID}/allocation-limit
func (h *CircleHandler) SetAllocationLimit(w http.ResponseWriter, r *http.Request) {
	id, err := circleID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	var req SetAllocationLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	circle, err := h.service.SetAllocationLimit(r.Context(), id, req.HostUserID, req.Amount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message":      "Allocation distributed",
		"circle_id":    circle.ID,
		"pool_balance": circle.PoolBalance,
		"members":      circle.Members,
	})
}

// AllocateManualRequest represents the request body for a targeted
// allocation.
type AllocateManualRequest struct {
	HostUserID   int64           `json:"host_user_id"`
	TargetUserID int64           `json:"target_user_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// AllocateManual handles the targeted allocation request.
// POST /circles/{circleID}/allocations
func (h *CircleHandler) AllocateManual(w http.ResponseWriter, r *http.Request) {
	id, err := circleID(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	var req AllocateManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	circle, err := h.service.AllocateManual(r.Context(), id, req.HostUserID, req.TargetUserID, req.Amount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message":      "Allocation successful",
		"circle_id":    circle.ID,
		"pool_balance": circle.PoolBalance,
		"members":      circle.Members,
	})
}
