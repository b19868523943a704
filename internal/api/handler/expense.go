// internal/api/handler/expense.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"circlepool/internal/service"
	"circlepool/internal/util"
)

// recentExpenseLimit caps the /expenses/recent response.
const recentExpenseLimit = 10

// ExpenseHandler handles HTTP requests related to expense settlement.
type ExpenseHandler struct {
	service service.ExpenseService
	logger  *slog.Logger
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(svc service.ExpenseService, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		service: svc,
		logger:  logger,
	}
}

// RecordExpenseRequest represents the request body for recording an expense.
type RecordExpenseRequest struct {
	CircleID    int64           `json:"circle_id"`
	PayerUserID int64           `json:"payer_user_id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiverUpi string          `json:"receiver_upi"`
	SpentAt     time.Time       `json:"spent_at"`
}

// RecordExpense handles the expense settlement request. Classification is
// asynchronous; the response carries the expense in its Unclassified state.
// POST /expenses
func (h *ExpenseHandler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req RecordExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	expense, err := h.service.RecordExpense(r.Context(), req.CircleID, req.PayerUserID, service.RecordExpenseParams{
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		ReceiverUpi: req.ReceiverUpi,
		SpentAt:     req.SpentAt,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, expense)
}

// ListRecent handles the recent-expenses request.
// GET /expenses/recent?user_id=
func (h *ExpenseHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	expenses, err := h.service.ListExpenses(r.Context(), userID, recentExpenseLimit)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"expenses": expenses})
}

// ListAll handles the full expense listing request.
// GET /expenses?user_id=
func (h *ExpenseHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	expenses, err := h.service.ListExpenses(r.Context(), userID, 0)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"expenses": expenses})
}
