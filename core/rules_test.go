package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d1 = NewDate(2025, time.March, 10)

func codes(bs []Badge) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Code)
	}
	return out
}

func badge(code string) Badge {
	for _, b := range Catalog(DefaultBadgeRules()) {
		if b.Code == code {
			return b
		}
	}
	return Badge{Code: code}
}

func TestApplyEvent_FirstLogin(t *testing.T) {
	st, out, err := ApplyEvent(NewState("u1"), Login{}, d1)
	require.NoError(t, err)

	assert.Equal(t, int64(10), out.XPGained)
	assert.False(t, out.LevelUp)
	assert.True(t, out.StreakIncremented)
	assert.Equal(t, []string{BadgeDay1}, codes(out.NewBadges))
	assert.Equal(t, int64(10), out.TotalXP)
	assert.Equal(t, int64(1), out.Level)
	assert.Equal(t, int64(1), out.CurrentStreak)
	assert.Equal(t, int64(90), out.XPToNextLevel)
	assert.Equal(t, d1, st.LastCheckIn)
}

func TestApplyEvent_SecondLoginSameDay(t *testing.T) {
	st, _, err := ApplyEvent(NewState("u1"), Login{}, d1)
	require.NoError(t, err)

	st, out, err := ApplyEvent(st, Login{}, d1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.XPGained)
	assert.False(t, out.StreakIncremented)
	assert.Empty(t, out.NewBadges)
	assert.Equal(t, int64(1), out.CurrentStreak)
	assert.Equal(t, int64(20), st.TotalXP)
}

func TestApplyEvent_QuizExtendsStreakAndLevelsUp(t *testing.T) {
	prev := State{
		TotalXP:       90,
		CurrentStreak: 2,
		LastCheckIn:   d1,
		Badges:        []Badge{badge(BadgeDay1)},
	}.Normalize()
	require.Equal(t, int64(1), prev.Level)

	quiz := QuizCompleted{Score: 85, CompletedAt: time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)}
	st, out, err := ApplyEvent(prev, quiz, d1.Add(1))
	require.NoError(t, err)

	assert.Equal(t, int64(12), out.XPGained)
	assert.Equal(t, int64(102), out.TotalXP)
	assert.Equal(t, int64(2), out.Level)
	assert.True(t, out.LevelUp)
	assert.True(t, out.StreakIncremented)
	assert.Equal(t, int64(3), out.CurrentStreak)
	assert.Equal(t, []string{BadgeStreak3}, codes(out.NewBadges))
	assert.Equal(t, int64(1), st.Counters.QuizzesCompleted)
	assert.Equal(t, []string{BadgeDay1, BadgeStreak3}, codes(st.Badges))
}

func TestApplyEvent_GapRestartsStreak(t *testing.T) {
	prev := State{
		TotalXP:       300,
		CurrentStreak: 6,
		LastCheckIn:   d1,
		Badges:        []Badge{badge(BadgeDay1), badge(BadgeStreak3)},
	}
	_, out, err := ApplyEvent(prev, Login{}, d1.Add(4))
	require.NoError(t, err)

	assert.Equal(t, int64(1), out.CurrentStreak)
	assert.False(t, out.StreakIncremented)
	assert.Empty(t, out.NewBadges)
	assert.Equal(t, int64(10), out.XPGained)
}

func TestApplyEvent_GapDoesNotPayStreakBonus(t *testing.T) {
	prev := State{CurrentStreak: 4, LastCheckIn: d1, Badges: []Badge{badge(BadgeDay1), badge(BadgeStreak3)}}
	quiz := QuizCompleted{Score: 50, CompletedAt: time.Now()}
	_, out, err := ApplyEvent(prev, quiz, d1.Add(2))
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.XPGained)
	assert.Equal(t, int64(1), out.CurrentStreak)
}

func TestApplyEvent_StreakIncrementsOncePerDay(t *testing.T) {
	st := NewState("u1")
	events := []Event{
		QuizCompleted{Score: 40, CompletedAt: time.Now()},
		Login{},
		PositionAdded{PositionID: "p1"},
		ModuleCompleted{ModuleID: "m1"},
		PositionUpdated{PositionID: "p1"},
	}
	for day := 0; day < 3; day++ {
		today := d1.Add(day)
		for i, ev := range events {
			var out Outcome
			var err error
			st, out, err = ApplyEvent(st, ev, today)
			require.NoError(t, err)
			assert.Equal(t, i == 0, out.StreakIncremented, "day %d event %d", day, i)
			assert.Equal(t, int64(day+1), out.CurrentStreak)
		}
	}
}

func TestApplyEvent_OutOfOrderDayIsIgnored(t *testing.T) {
	prev := State{CurrentStreak: 3, LastCheckIn: d1}
	st, out, err := ApplyEvent(prev, Login{}, d1.Add(-1))
	require.NoError(t, err)
	assert.False(t, out.StreakIncremented)
	assert.Equal(t, int64(3), st.CurrentStreak)
	assert.Equal(t, d1, st.LastCheckIn)
}

func TestApplyEvent_LevelFormulaHolds(t *testing.T) {
	st := NewState("u1")
	events := []Event{
		Login{},
		PositionAdded{PositionID: "a"},
		ModuleCompleted{ModuleID: "m", FirstTime: true},
		QuizCompleted{Score: 99, CompletedAt: time.Now()},
		PositionUpdated{PositionID: "a"},
	}
	for i := 0; i < 40; i++ {
		ev := events[i%len(events)]
		before := st
		var out Outcome
		var err error
		st, out, err = ApplyEvent(st, ev, d1.Add(i/3))
		require.NoError(t, err)
		assert.Equal(t, st.TotalXP/100+1, st.Level)
		assert.Equal(t, st.Level*100-st.TotalXP, st.XPToNextLevel)
		assert.Equal(t, before.TotalXP+out.XPGained, st.TotalXP)
		assert.Equal(t, st.Level > LevelFor(before.TotalXP), out.LevelUp)
	}
}

func TestApplyEvent_MultiLevelJump(t *testing.T) {
	engine := NewEngine(WithRewards(RewardTable{Events: map[EventType]Reward{EventPositionAdded: {Base: 300}}}))
	_, out, err := engine.Apply(State{TotalXP: 50}, PositionAdded{PositionID: "p"}, d1)
	require.NoError(t, err)
	assert.True(t, out.LevelUp)
	assert.Equal(t, int64(4), out.Level)
}

func TestApplyEvent_BadgesAreIdempotent(t *testing.T) {
	prev := State{
		CurrentStreak: 3,
		LastCheckIn:   d1,
		Badges:        []Badge{badge(BadgeDay1), badge(BadgeStreak3)},
	}
	st, out, err := ApplyEvent(prev, Login{}, d1.Add(1))
	require.NoError(t, err)
	assert.NotContains(t, codes(out.NewBadges), BadgeStreak3)
	assert.Equal(t, 1, countCode(st.Badges, BadgeStreak3))

	_, out, err = ApplyEvent(st, Login{}, d1.Add(1))
	require.NoError(t, err)
	assert.Empty(t, out.NewBadges)
}

func countCode(bs []Badge, code string) int {
	n := 0
	for _, b := range bs {
		if b.Code == code {
			n++
		}
	}
	return n
}

func TestApplyEvent_BadgeOrderFollowsRules(t *testing.T) {
	prev := State{Counters: Counters{PositionsAdded: 2}}
	_, out, err := ApplyEvent(prev, PositionAdded{PositionID: "p3"}, d1)
	require.NoError(t, err)
	assert.Equal(t, []string{BadgeDay1, BadgePortfolioCreator, BadgeDiversifier}, codes(out.NewBadges))
}

func TestApplyEvent_CustomRules(t *testing.T) {
	xpRule := BadgeRule{Badge: Badge{Code: "xp_100"}, When: func(st State, _ Event) bool { return st.TotalXP >= 100 }}
	engine := NewEngine(WithBadgeRules([]BadgeRule{xpRule}))
	st, out, err := engine.Apply(State{TotalXP: 95}, Login{}, d1)
	require.NoError(t, err)
	assert.Equal(t, []string{"xp_100"}, codes(out.NewBadges))
	assert.Equal(t, []string{"xp_100"}, codes(st.Badges))
}

func TestApplyEvent_RewardVariants(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		ev   Event
		want int64
	}{
		{"module repeat", ModuleCompleted{ModuleID: "m"}, 20},
		{"module first time", ModuleCompleted{ModuleID: "m", FirstTime: true}, 50},
		{"quiz low", QuizCompleted{Score: 10, CompletedAt: now}, 10},
		{"position added", PositionAdded{PositionID: "p"}, 40},
		{"position updated", PositionUpdated{PositionID: "p"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := State{LastCheckIn: d1, CurrentStreak: 1}
			_, out, err := ApplyEvent(prev, tt.ev, d1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.XPGained)
		})
	}

	table := DefaultRewards()
	table.QuizPassBonus = 15
	engine := NewEngine(WithRewards(table))
	_, out, err := engine.Apply(State{LastCheckIn: d1, CurrentStreak: 1}, QuizCompleted{Score: 80, CompletedAt: now}, d1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), out.XPGained)
}

func TestApplyEvent_ValidationLeavesStateUntouched(t *testing.T) {
	prev := State{TotalXP: 40, CurrentStreak: 1, LastCheckIn: d1, Badges: []Badge{badge(BadgeDay1)}}
	tests := []struct {
		name  string
		st    State
		ev    Event
		today Date
	}{
		{"nil event", prev, nil, d1},
		{"missing module id", prev, ModuleCompleted{}, d1},
		{"score too high", prev, QuizCompleted{Score: 101, CompletedAt: time.Now()}, d1},
		{"negative score", prev, QuizCompleted{Score: -1, CompletedAt: time.Now()}, d1},
		{"nan score", prev, QuizCompleted{Score: math.NaN(), CompletedAt: time.Now()}, d1},
		{"inf score", prev, QuizCompleted{Score: math.Inf(1), CompletedAt: time.Now()}, d1},
		{"missing completion time", prev, QuizCompleted{Score: 50}, d1},
		{"missing position", prev, PositionUpdated{}, d1},
		{"zero today", prev, Login{}, Date{}},
		{"negative xp", State{TotalXP: -5}, Login{}, d1},
		{"negative streak", State{CurrentStreak: -1}, Login{}, d1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, out, err := ApplyEvent(tt.st, tt.ev, tt.today)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.st, st)
			assert.Equal(t, Outcome{}, out)
		})
	}
}

func TestApplyEvent_OverflowIsRejected(t *testing.T) {
	prev := State{TotalXP: math.MaxInt64 - 1}
	st, _, err := ApplyEvent(prev, Login{}, d1)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, prev, st)
}

func TestRewardTableValidate(t *testing.T) {
	require.NoError(t, DefaultRewards().Validate())

	bad := DefaultRewards()
	bad.Events[EventLogin] = Reward{Base: -1}
	bad.Events["unknown"] = Reward{Base: 1}
	bad.QuizPassScore = 120
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
	assert.Contains(t, err.Error(), "unknown event type")
	assert.Contains(t, err.Error(), "quiz_pass_score")
}
