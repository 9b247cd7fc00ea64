package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "finquest/adapters/websocket"
	"finquest/core"
	"finquest/engine"
	"finquest/leaderboard"
	"finquest/realtime"

	"github.com/go-playground/validator/v10"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via X-API-Key, or
	// Authorization: Bearer when JWT identity is disabled.
	APIKeys []string
	// JWTSecret, if set, resolves the caller from the sub claim of an HS256 bearer token.
	// Otherwise the X-User-ID header is trusted.
	JWTSecret string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Leaderboard backs GET {prefix}/leaderboard when set.
	Leaderboard leaderboard.Board
	// MaxBodyBytes caps request bodies; defaults to 64 KiB.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

const (
	defaultMaxBody     = 64 << 10
	defaultLeaderboard = 10
	maxLeaderboard     = 100
)

type server struct {
	svc      *engine.GamifyService
	board    leaderboard.Board
	ident    identifier
	validate *validator.Validate
	maxBody  int64
	logger   *slog.Logger
}

// NewMux builds an http.Handler exposing the gamification REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/gamification/event
//   - GET  {prefix}/gamification/me
//   - GET  {prefix}/gamification/badges
//   - GET  {prefix}/leaderboard?n=10
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.GamifyService, hub *realtime.Hub, opts Options) http.Handler {
	s := &server{
		svc:      svc,
		board:    opts.Leaderboard,
		ident:    identifier{secret: []byte(opts.JWTSecret)},
		validate: validator.New(),
		maxBody:  opts.MaxBodyBytes,
		logger:   opts.Logger,
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBody
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()

	// health
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	// WebSocket notices, scoped to the caller
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub, s.ident.user))
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/gamification/event"), s.authed(http.MethodPost, s.handleEvent))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/gamification/me"), s.authed(http.MethodGet, s.handleMe))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/gamification/badges"), s.authed(http.MethodGet, s.handleBadges))
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), s.handleLeaderboard)

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	bearerKeys := opts.JWTSecret == ""
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys, bearerKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst, bearerKeys)
	}
	return handler
}

type userHandler func(w http.ResponseWriter, r *http.Request, user core.UserID)

// authed enforces the method and resolves the caller before calling next.
func (s *server) authed(method string, next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
			return
		}
		user, err := s.ident.user(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			return
		}
		next(w, r, user)
	}
}

func (s *server) handleEvent(w http.ResponseWriter, r *http.Request, user core.UserID) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not read body", nil)
		return
	}
	if int64(len(body)) > s.maxBody {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", nil)
		return
	}
	var payload core.EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON", nil)
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", "event_type is missing or unknown", fieldErrors(err))
		return
	}
	ev, err := payload.Event()
	if err != nil {
		writeEventError(w, err)
		return
	}
	res, err := s.svc.ProcessEvent(r.Context(), user, ev)
	if err != nil {
		if core.IsValidationError(err) {
			writeEventError(w, err)
			return
		}
		s.logger.Error("process event failed", "user", user, "event_type", ev.Type(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not process event", nil)
		return
	}
	writeJSON(w, res)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request, user core.UserID) {
	st, err := s.svc.GetState(r.Context(), user)
	if err != nil {
		s.logger.Error("load state failed", "user", user, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not load state", nil)
		return
	}
	writeJSON(w, st)
}

func (s *server) handleBadges(w http.ResponseWriter, r *http.Request, user core.UserID) {
	list, err := s.svc.Badges(r.Context(), user)
	if err != nil {
		s.logger.Error("load badges failed", "user", user, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not load badges", nil)
		return
	}
	writeJSON(w, list)
}

func (s *server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
		return
	}
	if s.board == nil {
		writeError(w, http.StatusNotFound, "not_found", "leaderboard disabled", nil)
		return
	}
	n := defaultLeaderboard
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
			return
		}
		n = min(v, maxLeaderboard)
	}
	entries := s.board.TopN(n)
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, entries)
}

// Helpers

func writeEventError(w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "invalid_event", ve.Error(), map[string]string{"field": ve.Field})
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_event", err.Error(), nil)
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func fieldErrors(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.GamifyService) {
	ctx := r.Context()

	// Reading an unknown user touches storage without writing.
	dummyUser := core.UserID("healthcheck_probe")
	_, err := svc.GetState(ctx, dummyUser)

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-API-Key,X-User-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string, bearer bool) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r, bearer)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int, bearer bool) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r, bearer)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractAPIKey reads X-API-Key, falling back to a bearer token only when
// bearer tokens are not JWTs.
func extractAPIKey(r *http.Request, bearer bool) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if bearer {
		return bearerToken(r)
	}
	return ""
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request, bearer bool) string {
	if key := extractAPIKey(r, bearer); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
