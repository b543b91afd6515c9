package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/clv"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/detector"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/hub"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
)

const maxRecent = 1000

// LineStore keeps the newest snapshot per game so closing lines can be
// captured for evaluated games
type LineStore interface {
	Put(ctx context.Context, line models.MarketLine) (bool, error)
}

// Deps are the collaborators the HTTP surface serves
type Deps struct {
	Config  *config.Config
	Engine  *detector.Engine
	Tracker *clv.Tracker
	Lines   LineStore
	Metrics *metrics.Metrics
	Hub     *hub.Hub
	Leagues []string
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	deps Deps
	log  zerolog.Logger

	// recommendations from recent evaluations, placeable by id
	recent      map[string]models.BetRecommendation
	recentOrder []string
	recentMu    sync.Mutex
}

// NewHandler creates a new handler
func NewHandler(deps Deps, log zerolog.Logger) *Handler {
	return &Handler{
		deps:   deps,
		log:    log.With().Str("component", "api").Logger(),
		recent: make(map[string]models.BetRecommendation),
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "healthy",
		"service": "handicapper",
		"leagues": h.deps.Leagues,
	}
	if h.deps.Hub != nil {
		health["feed_clients"] = h.deps.Hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, health)
}

// FeedStats returns live-feed hub counters
func (h *Handler) FeedStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		respondError(w, http.StatusNotFound, "live feed disabled")
		return
	}
	respondJSON(w, http.StatusOK, h.deps.Hub.Stats())
}

func (h *Handler) remember(recs []models.BetRecommendation) {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()

	for _, rec := range recs {
		if _, ok := h.recent[rec.ID]; !ok {
			h.recentOrder = append(h.recentOrder, rec.ID)
		}
		h.recent[rec.ID] = rec
	}
	for len(h.recentOrder) > maxRecent {
		delete(h.recent, h.recentOrder[0])
		h.recentOrder = h.recentOrder[1:]
	}
}

func (h *Handler) lookup(id string) (models.BetRecommendation, bool) {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()

	rec, ok := h.recent[id]
	return rec, ok
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
