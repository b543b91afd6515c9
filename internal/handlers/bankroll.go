package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/shopspring/decimal"
)

// BankrollResponse is the bankroll plus derived guard values
type BankrollResponse struct {
	models.Bankroll
	Drawdown float64 `json:"drawdown"`
}

// GetBankroll returns the sizing state for the current week
func (h *Handler) GetBankroll(w http.ResponseWriter, r *http.Request) {
	b := h.deps.Engine.Sizer().Bankroll()
	respondJSON(w, http.StatusOK, BankrollResponse{Bankroll: b, Drawdown: b.Drawdown()})
}

// StartWeekRequest optionally sets the new week's balance
type StartWeekRequest struct {
	Balance decimal.NullDecimal `json:"balance"`
}

// StartWeek begins a new exposure week, at the current balance by default
func (h *Handler) StartWeek(w http.ResponseWriter, r *http.Request) {
	var req StartWeekRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	sizer := h.deps.Engine.Sizer()
	balance := sizer.Bankroll().Current
	if req.Balance.Valid {
		balance = req.Balance.Decimal
	}

	if err := sizer.StartWeek(balance, time.Now().UTC()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b := sizer.Bankroll()
	if h.deps.Metrics != nil {
		h.deps.Metrics.UpdateBankroll(b.Current, b.WeekStart, b.WeekExposure)
	}
	respondJSON(w, http.StatusOK, BankrollResponse{Bankroll: b, Drawdown: b.Drawdown()})
}
