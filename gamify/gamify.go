package gamify

import (
	"log/slog"
	"time"

	mem "finquest/adapters/memory"
	"finquest/analytics"
	"finquest/core"
	"finquest/engine"
	"finquest/integrations/webhook"
	"finquest/leaderboard"
	"finquest/realtime"
)

// Option configures the Gamify service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	rules   *core.Engine
	hub     *realtime.Hub
	board   leaderboard.Board
	webhook *webhook.Sink
	hooks   []analytics.Hook
	svcOpts []engine.ServiceOption
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRules sets the rules engine.
func WithRules(r *core.Engine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async notice dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all notices.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLeaderboard keeps board in sync with xp_gained notices.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithWebhook forwards notices to a webhook sink.
func WithWebhook(s *webhook.Sink) Option { return func(c *config) { c.webhook = s } }

// WithAnalytics feeds notices to analytics hooks.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, engine.WithClock(clock)) }
}

// WithLocation sets the time zone in which streak days are counted.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, engine.WithLocation(loc)) }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, engine.WithLogger(l)) }
}

// New builds a configured GamifyService. If not provided, defaults are used:
//   - storage: in-memory
//   - rules: core.DefaultEngine
//   - dispatch: async
func New(opts ...Option) *engine.GamifyService {
	cfg := &config{mode: engine.DispatchAsync, rules: core.DefaultEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewGamifyService(cfg.storage, bus, cfg.rules, cfg.svcOpts...)
	if cfg.hub != nil {
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	if cfg.board != nil {
		bus.Subscribe(core.NoticeXPGained, leaderboard.Feed(cfg.board))
	}
	if cfg.webhook != nil {
		bus.SubscribeAll(cfg.webhook.OnNotice)
	}
	if len(cfg.hooks) > 0 {
		bus.SubscribeAll(analytics.Handler(analytics.NewBridge(cfg.hooks...)))
	}
	return svc
}
