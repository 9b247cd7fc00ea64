package coordinator

import (
	"log/slog"
	"sync"

	"finquest/core"
)

// Notifier is the notification surface of a UI shell.
type Notifier interface {
	ShowXPToast(amount int64, eventType core.EventType)
	ShowStreakToast(streak int64)
	ShowLevelUpToast(level int64)
	ShowBadgeModal(badges []core.Badge)
}

// NotifierFuncs adapts plain functions to Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	XPToast      func(amount int64, eventType core.EventType)
	StreakToast  func(streak int64)
	LevelUpToast func(level int64)
	BadgeModal   func(badges []core.Badge)
}

func (f NotifierFuncs) ShowXPToast(amount int64, et core.EventType) {
	if f.XPToast != nil {
		f.XPToast(amount, et)
	}
}

func (f NotifierFuncs) ShowStreakToast(streak int64) {
	if f.StreakToast != nil {
		f.StreakToast(streak)
	}
}

func (f NotifierFuncs) ShowLevelUpToast(level int64) {
	if f.LevelUpToast != nil {
		f.LevelUpToast(level)
	}
}

func (f NotifierFuncs) ShowBadgeModal(badges []core.Badge) {
	if f.BadgeModal != nil {
		f.BadgeModal(badges)
	}
}

// Kind names a notification primitive.
type Kind string

const (
	KindXPToast      Kind = "xp_toast"
	KindStreakToast  Kind = "streak_toast"
	KindLevelUpToast Kind = "level_up_toast"
	KindBadgeModal   Kind = "badge_modal"
)

// Notification is one queued call of a Notifier primitive.
type Notification struct {
	Kind      Kind
	XP        int64
	EventType core.EventType
	Streak    int64
	Level     int64
	Badges    []core.Badge
}

// NotificationsFor lists the notifications an outcome deserves, in display order.
// Zero XP is silent.
func NotificationsFor(out core.Outcome) []Notification {
	var ns []Notification
	if out.XPGained > 0 {
		ns = append(ns, Notification{Kind: KindXPToast, XP: out.XPGained, EventType: out.EventType})
	}
	if out.StreakIncremented {
		ns = append(ns, Notification{Kind: KindStreakToast, Streak: out.CurrentStreak})
	}
	if out.LevelUp {
		ns = append(ns, Notification{Kind: KindLevelUpToast, Level: out.Level})
	}
	if len(out.NewBadges) > 0 {
		ns = append(ns, Notification{Kind: KindBadgeModal, Badges: append([]core.Badge(nil), out.NewBadges...)})
	}
	return ns
}

// Queue delivers notifications to a Notifier in FIFO order from a single
// goroutine. It is unbounded: Push never blocks and never drops.
type Queue struct {
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	items   []Notification
	pending int
	closed  bool
	done    chan struct{}
}

// NewQueue starts the delivery goroutine.
func NewQueue(n Notifier, logger *slog.Logger) *Queue {
	if n == nil {
		n = NotifierFuncs{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{notifier: n, logger: logger, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Push enqueues ns contiguously. It reports false once the queue is closed.
func (q *Queue) Push(ns ...Notification) bool {
	if len(ns) == 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, ns...)
	q.pending += len(ns)
	q.cond.Broadcast()
	return true
}

// Len returns the number of notifications not yet delivered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Flush blocks until every pushed notification has been delivered.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.cond.Wait()
	}
}

// Close stops accepting notifications and returns after the backlog is delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		n := q.items[0]
		q.items[0] = Notification{}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.deliver(n)

		q.mu.Lock()
		q.pending--
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) deliver(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("notifier panicked", "kind", n.Kind, "panic", r)
		}
	}()
	switch n.Kind {
	case KindXPToast:
		q.notifier.ShowXPToast(n.XP, n.EventType)
	case KindStreakToast:
		q.notifier.ShowStreakToast(n.Streak)
	case KindLevelUpToast:
		q.notifier.ShowLevelUpToast(n.Level)
	case KindBadgeModal:
		q.notifier.ShowBadgeModal(n.Badges)
	}
}
