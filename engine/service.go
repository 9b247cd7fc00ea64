package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finquest/core"
)

// GamifyService is the authoritative event processor: it wires storage, the
// notice bus and the rules engine.
type GamifyService struct {
	storage Storage
	bus     *EventBus
	rules   *core.Engine
	clock   func() time.Time
	loc     *time.Location
	logger  *slog.Logger
}

// ServiceOption configures a GamifyService.
type ServiceOption func(*GamifyService)

// WithClock overrides the wall clock used to compute the streak day.
func WithClock(clock func() time.Time) ServiceOption {
	return func(g *GamifyService) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLocation sets the time zone in which calendar days are counted.
func WithLocation(loc *time.Location) ServiceOption {
	return func(g *GamifyService) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(g *GamifyService) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewGamifyService(storage Storage, bus *EventBus, rules *core.Engine, opts ...ServiceOption) *GamifyService {
	if storage == nil || bus == nil || rules == nil {
		panic("NewGamifyService requires non-nil storage, bus, and rules")
	}
	g := &GamifyService{
		storage: storage,
		bus:     bus,
		rules:   rules,
		clock:   time.Now,
		loc:     time.UTC,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Subscribe convenience method.
func (g *GamifyService) Subscribe(typ core.NoticeType, handler func(context.Context, core.Notice)) func() {
	return g.bus.Subscribe(typ, handler)
}

// SubscribeAll registers handler for every notice type.
func (g *GamifyService) SubscribeAll(handler func(context.Context, core.Notice)) func() {
	return g.bus.SubscribeAll(handler)
}

func (g *GamifyService) Publish(ctx context.Context, n core.Notice) {
	g.bus.Publish(ctx, n)
}

// Today returns the current calendar day in the service time zone.
func (g *GamifyService) Today() core.Date {
	return core.DateOf(g.clock().In(g.loc))
}

// ProcessEvent applies ev to the user's stored state and publishes the
// resulting notices. Validation failures return a *core.ValidationError and
// leave storage untouched.
func (g *GamifyService) ProcessEvent(ctx context.Context, user core.UserID, ev core.Event) (core.Result, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Result{}, err
	}
	if ev == nil {
		return core.Result{}, &core.ValidationError{Field: "event_type", Reason: "required"}
	}
	if err := ev.Validate(); err != nil {
		return core.Result{}, err
	}

	today := g.Today()
	var out core.Outcome
	st, err := g.storage.Update(ctx, normalized, func(cur core.State) (core.State, error) {
		next, o, err := g.rules.Apply(cur, ev, today)
		if err != nil {
			return cur, err
		}
		out = o
		next.UserID = normalized
		next.Updated = g.clock().UTC()
		return next, nil
	})
	if err != nil {
		if core.IsValidationError(err) {
			return core.Result{}, err
		}
		return core.Result{}, fmt.Errorf("process %s for %s: %w", ev.Type(), normalized, err)
	}

	g.logger.Debug("gamification event processed",
		"user", normalized,
		"event_type", ev.Type(),
		"xp_gained", out.XPGained,
		"total_xp", out.TotalXP,
		"streak", out.CurrentStreak,
		"new_badges", len(out.NewBadges))

	for _, n := range core.NoticesFor(normalized, out) {
		g.bus.Publish(ctx, n)
	}
	return core.Result{Outcome: out, State: st.Normalize()}, nil
}

// GetState returns the user's state; unknown users get defaults.
func (g *GamifyService) GetState(ctx context.Context, user core.UserID) (core.State, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.State{}, err
	}
	st, err := g.storage.GetState(ctx, normalized)
	if err != nil {
		return core.State{}, err
	}
	st.UserID = normalized
	return st.Normalize(), nil
}

// BadgeStatus is a catalog entry with the user's earned flag.
type BadgeStatus struct {
	core.Badge
	Earned bool `json:"earned"`
}

// Badges lists every badge the engine can unlock plus any legacy badge the
// user holds outside the current rule set.
func (g *GamifyService) Badges(ctx context.Context, user core.UserID) ([]BadgeStatus, error) {
	st, err := g.GetState(ctx, user)
	if err != nil {
		return nil, err
	}
	catalog := g.rules.Catalog()
	out := make([]BadgeStatus, 0, len(catalog))
	seen := make(map[string]bool, len(catalog))
	for _, b := range catalog {
		seen[b.Code] = true
		out = append(out, BadgeStatus{Badge: b, Earned: st.HasBadge(b.Code)})
	}
	for _, b := range st.Badges {
		if !seen[b.Code] {
			out = append(out, BadgeStatus{Badge: b, Earned: true})
		}
	}
	return out, nil
}

// Rules returns the rules engine in use.
func (g *GamifyService) Rules() *core.Engine { return g.rules }

func (g *GamifyService) Close() { g.bus.Close() }
