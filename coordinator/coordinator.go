// Package coordinator is the client-side half of the gamification flow. It
// forwards user actions to an authoritative processor, caches the returned
// state and turns outcomes into UI notifications.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finquest/core"
)

// Processor is the authoritative event processor, remote or in-process.
type Processor interface {
	SendEvent(ctx context.Context, ev core.Event) (core.Result, error)
	GetState(ctx context.Context) (core.State, error)
}

// Status is the lifecycle stage of the cached state.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIdentity marks the coordinator as acting for user. Without an identity
// nothing is sent to the processor.
func WithIdentity(user core.UserID) Option {
	return func(c *Coordinator) {
		c.user = user
		c.hasUser = user != ""
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSignals replaces DefaultSignals as the source of gamification signals.
func WithSignals(s *Signals) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.signals = s
		}
	}
}

// WithTimeout bounds each processor call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// Coordinator caches one user's gamification state and reports outcomes
// through a Notifier. It is safe for concurrent use.
type Coordinator struct {
	proc    Processor
	queue   *Queue
	logger  *slog.Logger
	signals *Signals
	timeout time.Duration
	user    core.UserID
	hasUser bool

	mu      sync.RWMutex
	state   core.State
	status  Status
	loads   int
	attach  bool
	unsub   func()
	seen    *seenSet
	closed  bool
	pending sync.WaitGroup
}

// New builds a coordinator around processor. Notifications are delivered to
// notifier from a single goroutine.
func New(processor Processor, notifier Notifier, opts ...Option) *Coordinator {
	if processor == nil {
		panic("coordinator.New requires a processor")
	}
	c := &Coordinator{
		proc:    processor,
		logger:  slog.Default(),
		signals: DefaultSignals,
		timeout: 15 * time.Second,
		seen:    newSeenSet(256),
	}
	for _, o := range opts {
		o(c)
	}
	c.state = core.NewState(c.user)
	c.queue = NewQueue(notifier, c.logger)
	return c
}

// Start performs the initial load.
func (c *Coordinator) Start(ctx context.Context) error { return c.RefreshState(ctx) }

// RefreshState reloads the cached state from the processor. A failure keeps
// the previous state and is returned as a *TransientServiceError; the
// coordinator still ends Ready.
func (c *Coordinator) RefreshState(ctx context.Context) error {
	if !c.hasUser {
		c.mu.Lock()
		c.state = core.NewState("")
		if c.loads == 0 {
			c.status = StatusReady
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.loads++
	c.status = StatusLoading
	c.mu.Unlock()

	ctx, cancel := c.bound(ctx)
	st, err := c.proc.GetState(ctx)
	cancel()

	c.mu.Lock()
	c.loads--
	if err == nil {
		c.state = st.Normalize()
	}
	if c.loads == 0 {
		c.status = StatusReady
	}
	c.mu.Unlock()

	if err != nil {
		terr := &TransientServiceError{Op: "load state", Err: err}
		c.logger.Warn("gamification state load failed", "user", c.user, "error", terr)
		return terr
	}
	return nil
}

// Trigger validates ev, sends it and applies the result. A malformed event
// returns a *core.ValidationError and sends nothing. A processor failure is
// logged and yields (nil, nil) with the cache untouched.
// After Close it sends nothing and returns (nil, nil); Close waits for calls
// already in flight and delivers their notifications.
func (c *Coordinator) Trigger(ctx context.Context, ev core.Event) (*core.Outcome, error) {
	if ev == nil {
		return nil, &core.ValidationError{Field: "event_type", Reason: "required"}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("gamification event skipped after close", "event_type", ev.Type())
		return nil, nil
	}
	c.pending.Add(1)
	c.mu.Unlock()
	defer c.pending.Done()
	return c.send(ctx, ev)
}

// send runs a validated event through the processor. Callers hold a pending slot.
func (c *Coordinator) send(ctx context.Context, ev core.Event) (*core.Outcome, error) {
	if !c.hasUser {
		c.logger.Debug("gamification event skipped without identity", "event_type", ev.Type())
		return nil, nil
	}

	bctx, cancel := c.bound(ctx)
	res, err := c.proc.SendEvent(bctx, ev)
	cancel()
	if err != nil {
		if core.IsValidationError(err) {
			return nil, err
		}
		terr := &TransientServiceError{Op: "send " + string(ev.Type()), Err: err}
		c.logger.Warn("gamification event failed", "user", c.user, "event_type", ev.Type(), "error", terr)
		return nil, nil
	}

	c.mu.Lock()
	c.state = res.State.Normalize()
	c.mu.Unlock()

	if !c.queue.Push(NotificationsFor(res.Outcome)...) {
		c.logger.Error("gamification notifications dropped", "user", c.user, "event_type", ev.Type())
	}
	out := res.Outcome
	return &out, nil
}

func (c *Coordinator) TriggerLogin(ctx context.Context) (*core.Outcome, error) {
	return c.Trigger(ctx, core.Login{})
}

func (c *Coordinator) TriggerModuleCompleted(ctx context.Context, moduleID string, firstTime bool) (*core.Outcome, error) {
	return c.Trigger(ctx, core.ModuleCompleted{ModuleID: moduleID, FirstTime: firstTime})
}

func (c *Coordinator) TriggerQuizCompleted(ctx context.Context, score float64, completedAt time.Time) (*core.Outcome, error) {
	return c.Trigger(ctx, core.QuizCompleted{Score: score, CompletedAt: completedAt})
}

func (c *Coordinator) TriggerPortfolioPositionAdded(ctx context.Context, positionID string) (*core.Outcome, error) {
	return c.Trigger(ctx, core.PositionAdded{PositionID: positionID})
}

func (c *Coordinator) TriggerPortfolioPositionUpdated(ctx context.Context, positionID string) (*core.Outcome, error) {
	return c.Trigger(ctx, core.PositionUpdated{PositionID: positionID})
}

// Dispatch runs Trigger in the background. Validation happens before it
// returns; the channel yields the outcome, or nil on a swallowed failure, and
// is then closed.
func (c *Coordinator) Dispatch(ctx context.Context, ev core.Event) (<-chan *core.Outcome, error) {
	if ev == nil {
		return nil, &core.ValidationError{Field: "event_type", Reason: "required"}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending.Add(1)
	c.mu.Unlock()

	ch := make(chan *core.Outcome, 1)
	go func() {
		defer c.pending.Done()
		defer close(ch)
		out, err := c.send(ctx, ev)
		if err != nil {
			c.logger.Warn("gamification event rejected", "event_type", ev.Type(), "error", err)
		}
		ch <- out
	}()
	return ch, nil
}

// Attach subscribes the coordinator to SignalLogin. Only the first call in the
// coordinator's lifetime subscribes; a signal instance is handled at most once.
func (c *Coordinator) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attach || c.closed {
		return
	}
	c.attach = true
	c.unsub = c.signals.Subscribe(SignalLogin, c.onLogin)
}

// Detach removes the signal subscription.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *Coordinator) onLogin(sig Signal) {
	c.mu.Lock()
	fresh := c.seen.add(sig.ID)
	c.mu.Unlock()
	if !fresh {
		return
	}
	if _, err := c.Dispatch(context.Background(), core.Login{}); err != nil {
		c.logger.Warn("login signal dropped", "signal_id", sig.ID, "error", err)
	}
}

// Wait blocks until dispatched events have resolved and their notifications
// have been delivered.
func (c *Coordinator) Wait() {
	c.pending.Wait()
	c.queue.Flush()
}

// Close detaches, waits for in-flight events and drains the notification queue.
func (c *Coordinator) Close() {
	c.Detach()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.pending.Wait()
	c.queue.Close()
}

func (c *Coordinator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Snapshot returns a copy of the cached state.
func (c *Coordinator) Snapshot() core.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

func (c *Coordinator) TotalXP() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.TotalXP
}

func (c *Coordinator) Level() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Level
}

func (c *Coordinator) CurrentStreak() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.CurrentStreak
}

func (c *Coordinator) XPToNextLevel() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.XPToNextLevel
}

// Badges returns the earned badges in unlock order.
func (c *Coordinator) Badges() []core.Badge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Badge(nil), c.state.Badges...)
}

// Loading reports whether a state load is in flight. Event triggers never set it.
func (c *Coordinator) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusLoading
}

func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
