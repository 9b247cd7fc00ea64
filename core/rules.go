package core

// Outcome describes what one event changed.
type Outcome struct {
	EventType         EventType `json:"event_type"`
	XPGained          int64     `json:"xp_gained"`
	LevelUp           bool      `json:"level_up"`
	StreakIncremented bool      `json:"streak_incremented"`
	NewBadges         []Badge   `json:"new_badges"`
	TotalXP           int64     `json:"total_xp"`
	Level             int64     `json:"level"`
	CurrentStreak     int64     `json:"current_streak"`
	XPToNextLevel     int64     `json:"xp_to_next_level"`
}

// Result is the authoritative answer to a processed event.
type Result struct {
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
}

// Engine applies events to states. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	rewards RewardTable
	badges  []BadgeRule
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRewards replaces the reward table.
func WithRewards(t RewardTable) EngineOption { return func(e *Engine) { e.rewards = t } }

// WithBadgeRules replaces the ordered badge rule set.
func WithBadgeRules(rules []BadgeRule) EngineOption {
	return func(e *Engine) { e.badges = append([]BadgeRule(nil), rules...) }
}

// NewEngine builds an engine, defaulting to the reference rewards and badge rules.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{rewards: DefaultRewards(), badges: DefaultBadgeRules()}
	for _, o := range opts {
		o(e)
	}
	return e
}

var defaultEngine = NewEngine()

// DefaultEngine returns the engine with the reference configuration.
func DefaultEngine() *Engine { return defaultEngine }

// ApplyEvent applies ev with the default engine.
func ApplyEvent(st State, ev Event, today Date) (State, Outcome, error) {
	return defaultEngine.Apply(st, ev, today)
}

// Rewards returns the reward table in use.
func (e *Engine) Rewards() RewardTable { return e.rewards }

// Catalog lists the badges this engine can unlock.
func (e *Engine) Catalog() []Badge { return Catalog(e.badges) }

// Apply computes the state after ev happened on today. On error the input
// state is returned unchanged.
func (e *Engine) Apply(st State, ev Event, today Date) (State, Outcome, error) {
	if err := validateState(st); err != nil {
		return st, Outcome{}, err
	}
	if ev == nil {
		return st, Outcome{}, invalid("event_type", "required")
	}
	if err := ev.Validate(); err != nil {
		return st, Outcome{}, err
	}
	if today.IsZero() {
		return st, Outcome{}, invalid("today", "required")
	}

	prev := st.Normalize()
	next := prev.Clone()

	incremented := checkIn(&next, today)

	xp := e.rewards.Base(ev)
	if incremented {
		xp += e.rewards.StreakBonus(ev.Type())
	}
	if xp < 0 {
		return st, Outcome{}, invalid("xp", "negative reward %d", xp)
	}
	total, err := AddSafe(prev.TotalXP, xp)
	if err != nil {
		return st, Outcome{}, invalid("total_xp", "%v", err)
	}
	next.TotalXP = total
	next = next.Normalize()

	switch ev.(type) {
	case ModuleCompleted:
		next.Counters.ModulesCompleted++
	case QuizCompleted:
		next.Counters.QuizzesCompleted++
	case PositionAdded:
		next.Counters.PositionsAdded++
	}

	newBadges := []Badge{}
	for _, r := range e.badges {
		if r.When == nil || next.HasBadge(r.Badge.Code) {
			continue
		}
		if r.When(next, ev) {
			next.Badges = append(next.Badges, r.Badge)
			newBadges = append(newBadges, r.Badge)
		}
	}

	out := Outcome{
		EventType:         ev.Type(),
		XPGained:          xp,
		LevelUp:           next.Level > prev.Level,
		StreakIncremented: incremented,
		NewBadges:         newBadges,
		TotalXP:           next.TotalXP,
		Level:             next.Level,
		CurrentStreak:     next.CurrentStreak,
		XPToNextLevel:     next.XPToNextLevel,
	}
	return next, out, nil
}

// checkIn updates the streak for a qualifying action on today and reports
// whether the streak grew. A gap restarts the streak at 1 without counting as
// growth; a day before the last check-in is ignored.
func checkIn(st *State, today Date) bool {
	last := st.LastCheckIn
	prevStreak := st.CurrentStreak
	switch {
	case last.IsZero():
		st.CurrentStreak = 1
	case today == last, today.Before(last):
		return false
	case today.DaysSince(last) == 1:
		st.CurrentStreak++
	default:
		st.CurrentStreak = 1
	}
	st.LastCheckIn = today
	return st.CurrentStreak > prevStreak
}

func validateState(st State) error {
	if st.TotalXP < 0 {
		return invalid("total_xp", "must be non-negative, got %d", st.TotalXP)
	}
	if st.CurrentStreak < 0 {
		return invalid("current_streak", "must be non-negative, got %d", st.CurrentStreak)
	}
	return nil
}
