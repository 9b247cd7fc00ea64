package core

// BadgeRule unlocks Badge when When holds for the post-event state.
// The triggering event is passed for rules keyed on event payloads.
type BadgeRule struct {
	Badge Badge
	When  func(st State, ev Event) bool
}

// Badge codes of the default rule set.
const (
	BadgeDay1             = "day1"
	BadgeStreak3          = "streak3"
	BadgeStreak7          = "streak7"
	BadgeStreak30         = "streak30"
	BadgeModule5          = "module5"
	BadgeModule10         = "module10"
	BadgeModule20         = "module20"
	BadgeQuizChamp        = "quiz_champ"
	BadgePortfolioCreator = "portfolio_creator"
	BadgeDiversifier      = "diversifier"
	BadgeLevel5           = "level5"
)

func streakAtLeast(n int64) func(State, Event) bool {
	return func(st State, _ Event) bool { return st.CurrentStreak >= n }
}

func modulesAtLeast(n int64) func(State, Event) bool {
	return func(st State, _ Event) bool { return st.Counters.ModulesCompleted >= n }
}

func positionsAtLeast(n int64) func(State, Event) bool {
	return func(st State, _ Event) bool { return st.Counters.PositionsAdded >= n }
}

// DefaultBadgeRules returns the reference rule set in evaluation order.
func DefaultBadgeRules() []BadgeRule {
	return []BadgeRule{
		{Badge{BadgeDay1, "First Day", "Checked in for the first time", "streak"}, streakAtLeast(1)},
		{Badge{BadgeStreak3, "On a Roll", "3-day streak", "streak"}, streakAtLeast(3)},
		{Badge{BadgeStreak7, "Week Warrior", "7-day streak", "streak"}, streakAtLeast(7)},
		{Badge{BadgeStreak30, "Monthly Master", "30-day streak", "streak"}, streakAtLeast(30)},
		{Badge{BadgeModule5, "Module Apprentice", "Completed 5 modules", "learning"}, modulesAtLeast(5)},
		{Badge{BadgeModule10, "Module Scholar", "Completed 10 modules", "learning"}, modulesAtLeast(10)},
		{Badge{BadgeModule20, "Module Master", "Completed 20 modules", "learning"}, modulesAtLeast(20)},
		{Badge{BadgeQuizChamp, "Quiz Champ", "Scored 90% or more on a quiz", "learning"}, func(_ State, ev Event) bool {
			q, ok := ev.(QuizCompleted)
			return ok && q.Score >= 90
		}},
		{Badge{BadgePortfolioCreator, "Portfolio Creator", "Added a first portfolio position", "portfolio"}, positionsAtLeast(1)},
		{Badge{BadgeDiversifier, "Diversifier", "Added 3 or more portfolio positions", "portfolio"}, positionsAtLeast(3)},
		{Badge{BadgeLevel5, "Rising Investor", "Reached level 5", "progress"}, func(st State, _ Event) bool { return st.Level >= 5 }},
	}
}

// Catalog lists the badges a rule set can unlock, in rule order.
func Catalog(rules []BadgeRule) []Badge {
	out := make([]Badge, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Badge)
	}
	return out
}
