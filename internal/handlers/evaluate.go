package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

const evaluateTimeout = 30 * time.Second

// EvaluateRequest is a slate of games to evaluate
type EvaluateRequest struct {
	Games []models.GameInput `json:"games"`
}

// Evaluate runs the detection engine over a slate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.Games) == 0 {
		respondError(w, http.StatusBadRequest, "games must not be empty")
		return
	}
	for i, g := range req.Games {
		if g.Context.GameID == "" || g.Context.Home.Team == "" || g.Context.Away.Team == "" {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("games[%d]: game_id and both teams are required", i))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), evaluateTimeout)
	defer cancel()

	h.storeLines(ctx, req.Games)

	report, err := h.deps.Engine.Evaluate(ctx, req.Games)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		h.log.Error().Err(err).Int("games", len(req.Games)).Msg("evaluation failed")
		respondError(w, status, "evaluation failed")
		return
	}

	h.remember(report.Recommendations)
	respondJSON(w, http.StatusOK, report)
}

// storeLines keeps the newest snapshot of every evaluated game
func (h *Handler) storeLines(ctx context.Context, games []models.GameInput) {
	if h.deps.Lines == nil {
		return
	}
	for _, g := range games {
		for _, line := range g.Lines {
			if line.GameID == "" {
				line.GameID = g.Context.GameID
			}
			if _, err := h.deps.Lines.Put(ctx, line); err != nil {
				h.log.Warn().Err(err).Str("game_id", line.GameID).Msg("failed to store line")
			}
		}
	}
}
