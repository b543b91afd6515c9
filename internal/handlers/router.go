package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// NewRouter wires every route. ctx bounds live-feed connections.
func NewRouter(ctx context.Context, h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(h.log))
	r.Use(chimiddleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	if h.deps.Metrics != nil {
		r.Handle("/metrics", h.deps.Metrics.Handler())
	}
	if h.deps.Hub != nil {
		r.Get("/ws", h.deps.Hub.Handler(ctx))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(45 * time.Second))
		r.Use(RateLimit(opts.RateLimit, opts.RateBurst))

		r.Post("/evaluate", h.Evaluate)

		r.Get("/ratings", h.GetRatings)
		r.Post("/ratings/results", h.PostResults)
		r.Post("/ratings/bias", h.PostBias)

		r.Post("/clv/bets", h.PlaceBet)
		r.Post("/clv/bets/{id}/closing", h.CaptureClosing)
		r.Post("/clv/bets/{id}/result", h.RecordResult)
		r.Get("/clv/summary", h.GetSummary)

		r.Get("/bankroll", h.GetBankroll)
		r.Post("/bankroll/week", h.StartWeek)

		r.Get("/feed/stats", h.FeedStats)
	})

	return r
}

// RateLimit rejects requests beyond limit per second (burst deep) with 429.
// A non-positive limit disables it.
func RateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs every request with its status and latency
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
