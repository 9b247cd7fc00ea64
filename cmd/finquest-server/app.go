package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"finquest/adapters/jsonfile"
	mem "finquest/adapters/memory"
	redisAdapter "finquest/adapters/redis"
	sqlxAdapter "finquest/adapters/sqlx"
	"finquest/analytics"
	"finquest/api/httpapi"
	"finquest/config"
	"finquest/core"
	"finquest/engine"
	"finquest/gamify"
	"finquest/integrations/webhook"
	"finquest/leaderboard"
	"finquest/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Board   leaderboard.Board
	Metrics *analytics.Metrics
	Service *engine.GamifyService
	Handler http.Handler
	Server  *http.Server
}

func provideConfig() (*config.Config, error) {
	if path := os.Getenv("FINQUEST_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideMetrics() *analytics.Metrics {
	return analytics.NewMetrics()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	return setupStorage(ctx, cfg)
}

// provideLeaderboard builds the in-process board and seeds it from storage
// backends that can list their users.
func provideLeaderboard(ctx context.Context, storage engine.Storage, logger *slog.Logger) leaderboard.Board {
	board := leaderboard.NewSkipList()
	var states []core.State
	switch s := storage.(type) {
	case *sqlxAdapter.Store:
		top, err := s.TopN(ctx, seedLimit)
		if err != nil {
			logger.Warn("leaderboard seed failed", "error", err)
		}
		states = top
	case *redisAdapter.Store:
		top, err := s.TopN(ctx, seedLimit)
		if err != nil {
			logger.Warn("leaderboard seed failed", "error", err)
		}
		for _, e := range top {
			states = append(states, core.State{UserID: e.User, TotalXP: e.TotalXP})
		}
	case *jsonfile.Store:
		states = s.States()
	}
	leaderboard.Seed(board, states)
	return board
}

const seedLimit = 10000

func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	if len(cfg.Webhooks.Endpoints) == 0 {
		return nil
	}
	types := make([]core.NoticeType, 0, len(cfg.Webhooks.Types))
	for _, t := range cfg.Webhooks.Types {
		types = append(types, core.NoticeType(t))
	}
	return webhook.New(cfg.Webhooks.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhooks.Timeout}),
		webhook.WithSecret(cfg.Webhooks.Secret),
		webhook.WithTypes(types...),
		webhook.WithLogger(logger),
	)
}

func provideService(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, storage engine.Storage,
	board leaderboard.Board, metrics *analytics.Metrics, hook *webhook.Sink) (*engine.GamifyService, func(), error) {
	loc, err := cfg.Engine.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("engine timezone: %w", err)
	}
	mode := engine.DispatchAsync
	if cfg.Engine.Dispatch == "sync" {
		mode = engine.DispatchSync
	}
	opts := []gamify.Option{
		gamify.WithStorage(storage),
		gamify.WithRules(core.NewEngine(core.WithRewards(cfg.Engine.Rewards))),
		gamify.WithDispatchMode(mode),
		gamify.WithLeaderboard(board),
		gamify.WithWebhook(hook),
		gamify.WithAnalytics(metrics, analytics.NewDAU()),
		gamify.WithLocation(loc),
		gamify.WithLogger(logger),
	}
	if cfg.Realtime.Enabled {
		opts = append(opts, gamify.WithRealtime(hub))
	}
	svc := gamify.New(opts...)
	return svc, svc.Close, nil
}

func provideHandler(svc *engine.GamifyService, hub *realtime.Hub, board leaderboard.Board, cfg *config.Config, logger *slog.Logger) http.Handler {
	opts := httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		JWTSecret:        cfg.Security.JWTSecret,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Leaderboard:      board,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		Logger:           logger,
	}
	if !cfg.Realtime.Enabled {
		hub = nil
	}
	return httpapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), func() {}, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis storage: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, fmt.Errorf("sql storage: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file storage: %w", err)
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
