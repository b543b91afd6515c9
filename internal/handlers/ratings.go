package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"sort"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// GetRatings returns the ratings of one league (?league=) or all leagues
func (h *Handler) GetRatings(w http.ResponseWriter, r *http.Request) {
	leagues := h.deps.Leagues
	if league := r.URL.Query().Get("league"); league != "" {
		if !slices.Contains(h.deps.Leagues, league) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("unknown league %s", league))
			return
		}
		leagues = []string{league}
	}

	store := h.deps.Engine.Ratings()
	ratings := []models.TeamRating{}
	for _, league := range leagues {
		ratings = append(ratings, store.Snapshot(league)...)
	}
	sort.SliceStable(ratings, func(i, j int) bool {
		if ratings[i].League != ratings[j].League {
			return ratings[i].League < ratings[j].League
		}
		return ratings[i].Overall > ratings[j].Overall
	})

	respondJSON(w, http.StatusOK, ratings)
}

// ResultsRequest carries completed games
type ResultsRequest struct {
	Results []models.GameResult `json:"results"`
}

// PostResults applies completed games to the ratings
func (h *Handler) PostResults(w http.ResponseWriter, r *http.Request) {
	var req ResultsRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.Results) == 0 {
		respondError(w, http.StatusBadRequest, "results must not be empty")
		return
	}
	for i, res := range req.Results {
		if !slices.Contains(h.deps.Leagues, res.League) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("results[%d]: unknown league %q", i, res.League))
			return
		}
		if res.HomeTeam == "" || res.AwayTeam == "" || res.HomeTeam == res.AwayTeam {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("results[%d]: two distinct teams are required", i))
			return
		}
	}

	updated, err := h.deps.Engine.UpdateRatings(r.Context(), req.Results)
	if err != nil {
		h.log.Error().Err(err).Msg("rating update failed")
		respondError(w, http.StatusInternalServerError, "rating update failed")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// BiasRequest sets a league's systematic model correction
type BiasRequest struct {
	League string  `json:"league"`
	Points float64 `json:"points"`
}

// PostBias sets the bias applied to a league's model lines
func (h *Handler) PostBias(w http.ResponseWriter, r *http.Request) {
	var req BiasRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if !slices.Contains(h.deps.Leagues, req.League) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown league %q", req.League))
		return
	}

	store := h.deps.Engine.Ratings()
	store.SetBias(req.League, req.Points)

	respondJSON(w, http.StatusOK, BiasRequest{League: req.League, Points: store.Bias(req.League)})
}
