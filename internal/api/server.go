package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"venuehours/internal/service"
)

// Options configures the API listener.
type Options struct {
	Port      int
	APIKey    string
	RateLimit float64 // requests per second per client, 0 disables limiting
	RateBurst int
}

// HTTPServer serves the hours API over JSON.
type HTTPServer struct {
	svc     *service.HoursService
	log     *zerolog.Logger
	apiKey  string
	limiter *clientLimiter
	checks  []ReadinessCheck
	now     func() time.Time
	srv     *http.Server
}

// NewHTTPServer builds the server. checks back /readyz.
func NewHTTPServer(opts Options, svc *service.HoursService, logger *zerolog.Logger, checks ...ReadinessCheck) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HTTPServer{
		svc:     svc,
		log:     logger,
		apiKey:  opts.APIKey,
		limiter: newClientLimiter(opts.RateLimit, opts.RateBurst),
		checks:  checks,
		now:     time.Now,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed and wrapped API handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", s.route("healthz", false, handleHealth))
	mux.Handle("/readyz", s.route("readyz", false, readyHandler(s.checks)))

	mux.Handle("/api/v1/locations/{id}/status", s.route("status", true, s.handleStatus))
	mux.Handle("/api/v1/locations/{id}/schedule", s.route("schedule", true, s.handleSchedule))
	mux.Handle("/api/v1/locations/{id}/overrides", s.route("overrides", true, s.handleOverrides))
	mux.Handle("/api/v1/locations/{id}/overrides/{ruleID}", s.route("override", true, s.handleOverride))
	mux.Handle("/api/v1/locations/{id}/calendar.ics", s.route("calendar_ics", true, s.handleCalendarICS))
	mux.Handle("/api/v1/locations/{id}/schedule.xlsx", s.route("schedule_xlsx", true, s.handleScheduleXLSX))
	mux.Handle("/api/v1/preview", s.route("preview", true, s.handlePreview))

	return mux
}

// Start listens until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) route(name string, protected bool, h http.HandlerFunc) http.Handler {
	var next http.Handler = h
	if protected {
		next = s.requireAPIKey(next)
		next = s.rateLimit(next)
	}
	return instrument(name, next)
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && !s.validKey(r.Header.Get("X-Api-Key")) {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(s.clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a caller by its address. Only a key that matches the
// configured one gets its own bucket, so guessed keys share the address bucket.
func (s *HTTPServer) clientKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" && s.validKey(key) {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

func (s *HTTPServer) validKey(key string) bool {
	return s.apiKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
