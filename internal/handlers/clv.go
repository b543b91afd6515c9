package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/clv"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PlaceBetRequest places a recommendation from a recent evaluation by id,
// or one supplied in full. A supplied stake must fit the bankroll limits.
type PlaceBetRequest struct {
	RecommendationID string                    `json:"recommendation_id,omitempty"`
	Recommendation   *models.BetRecommendation `json:"recommendation,omitempty"`
}

// PlaceBet opens a CLV record for a placed recommendation
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var rec models.BetRecommendation
	external := false
	switch {
	case req.Recommendation != nil:
		rec = *req.Recommendation
		if found, ok := h.lookup(rec.ID); ok && rec.ID != "" {
			rec = found
			break
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		external = true
	case req.RecommendationID != "":
		found, ok := h.lookup(req.RecommendationID)
		if !ok {
			respondError(w, http.StatusNotFound, fmt.Sprintf("recommendation %s not found", req.RecommendationID))
			return
		}
		rec = found
	default:
		respondError(w, http.StatusBadRequest, "recommendation_id or recommendation is required")
		return
	}

	if h.deps.Tracker.Placed(rec.ID) {
		respondError(w, http.StatusConflict, fmt.Sprintf("recommendation %s: %v", rec.ID, clv.ErrAlreadyPlaced))
		return
	}

	sizer := h.deps.Engine.Sizer()
	admitted := external && !rec.Blocked && rec.StakeAmount.IsPositive()
	if admitted {
		if err := sizer.Admit(rec.StakeAmount); err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	record, err := h.deps.Tracker.Place(r.Context(), rec)
	if err != nil {
		if admitted {
			sizer.Release(rec.StakeAmount)
		}
		h.respondTrackerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// CaptureClosing records the closing snapshot of a bet
func (h *Handler) CaptureClosing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var line models.MarketLine
	if err := decode(r, &line); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	record, err := h.deps.Tracker.CaptureClosing(r.Context(), id, line)
	if err != nil {
		h.respondTrackerError(w, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordCLV(string(record.MarketType), *record.CLV)
	}
	respondJSON(w, http.StatusOK, record)
}

// ResultRequest is a bet's final score
type ResultRequest struct {
	HomeScore *int `json:"home_score"`
	AwayScore *int `json:"away_score"`
}

// RecordResult grades a bet and books its profit or loss
func (h *Handler) RecordResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ResultRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.HomeScore == nil || req.AwayScore == nil || *req.HomeScore < 0 || *req.AwayScore < 0 {
		respondError(w, http.StatusBadRequest, "home_score and away_score are required and non-negative")
		return
	}

	record, err := h.deps.Tracker.RecordResult(r.Context(), id, *req.HomeScore, *req.AwayScore)
	if err != nil {
		h.respondTrackerError(w, err)
		return
	}

	bankroll := h.deps.Engine.Sizer().ApplyProfit(*record.ProfitLoss)
	if h.deps.Metrics != nil {
		h.deps.Metrics.UpdateBankroll(bankroll.Current, bankroll.WeekStart, bankroll.WeekExposure)
	}
	respondJSON(w, http.StatusOK, record)
}

// GetSummary returns the CLV summary; ?window= and ?min_samples= override
// the configured rolling window and bias sample minimum
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", h.deps.Config.CLV.RollingWindow)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	minSamples, err := queryInt(r, "min_samples", h.deps.Config.CLV.BiasMinSamples)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.deps.Tracker.Summary(window, minSamples))
}

func (h *Handler) respondTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clv.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, clv.ErrAlreadyClosed), errors.Is(err, clv.ErrAlreadyGraded), errors.Is(err, clv.ErrAlreadyPlaced):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, clv.ErrNoStake):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("clv tracker error")
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return parsed, nil
}
