package leaderboard

import (
	"context"

	"finquest/core"
)

// Entry is one ranked user.
type Entry struct {
	User    core.UserID `json:"user_id"`
	TotalXP int64       `json:"total_xp"`
	Level   int64       `json:"level"`
}

// Board ranks users by total XP, ties broken by user id.
type Board interface {
	Update(user core.UserID, totalXP int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}

// Feed returns a notice handler that keeps board in sync with xp_gained notices.
func Feed(board Board) func(context.Context, core.Notice) {
	return func(_ context.Context, n core.Notice) {
		if n.Type != core.NoticeXPGained {
			return
		}
		board.Update(n.UserID, n.Total)
	}
}

// Seed loads the current totals of users into board.
func Seed(board Board, states []core.State) {
	for _, st := range states {
		board.Update(st.UserID, st.TotalXP)
	}
}
