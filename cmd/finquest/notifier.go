package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"finquest/core"
	sdk "finquest/sdk/go"
)

// renderer turns markdown into terminal output.
type renderer func(md string) (string, error)

func newRenderer(plain bool) renderer {
	if plain {
		return func(md string) (string, error) { return md, nil }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return func(md string) (string, error) { return md, nil }
	}
	return r.Render
}

// terminalNotifier prints toasts as single lines and badge modals as a
// rendered markdown block.
type terminalNotifier struct {
	out    io.Writer
	render renderer
}

func newTerminalNotifier(out io.Writer, render renderer) *terminalNotifier {
	return &terminalNotifier{out: out, render: render}
}

func (n *terminalNotifier) ShowXPToast(amount int64, et core.EventType) {
	fmt.Fprintf(n.out, "+%d XP (%s)\n", amount, strings.ReplaceAll(string(et), "_", " "))
}

func (n *terminalNotifier) ShowStreakToast(streak int64) {
	fmt.Fprintf(n.out, "Streak: %d day%s\n", streak, plural(streak))
}

func (n *terminalNotifier) ShowLevelUpToast(level int64) {
	fmt.Fprintf(n.out, "Level up! You reached level %d\n", level)
}

func (n *terminalNotifier) ShowBadgeModal(badges []core.Badge) {
	n.print(badgeMarkdown(badges))
}

func (n *terminalNotifier) print(md string) {
	s, err := n.render(md)
	if err != nil {
		s = md
	}
	fmt.Fprint(n.out, s)
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func badgeMarkdown(badges []core.Badge) string {
	var b strings.Builder
	if len(badges) == 1 {
		b.WriteString("## New badge unlocked\n\n")
	} else {
		fmt.Fprintf(&b, "## %d new badges unlocked\n\n", len(badges))
	}
	for _, badge := range badges {
		fmt.Fprintf(&b, "- **%s**: %s\n", badgeTitle(badge), badge.Description)
	}
	return b.String()
}

func badgeTitle(b core.Badge) string {
	if b.Name != "" {
		return b.Name
	}
	return b.Code
}

func stateMarkdown(st core.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", st.UserID)
	b.WriteString("| Level | Total XP | To next level | Streak | Last check-in |\n")
	b.WriteString("|---|---|---|---|---|\n")
	last := "never"
	if !st.LastCheckIn.IsZero() {
		last = st.LastCheckIn.String()
	}
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %s |\n\n", st.Level, st.TotalXP, st.XPToNextLevel, st.CurrentStreak, last)
	fmt.Fprintf(&b, "Modules %d, quizzes %d, positions %d\n\n",
		st.Counters.ModulesCompleted, st.Counters.QuizzesCompleted, st.Counters.PositionsAdded)
	if len(st.Badges) == 0 {
		b.WriteString("No badges yet.\n")
		return b.String()
	}
	b.WriteString("## Badges\n\n")
	for _, badge := range st.Badges {
		fmt.Fprintf(&b, "- **%s**\n", badgeTitle(badge))
	}
	return b.String()
}

func catalogMarkdown(badges []sdk.BadgeStatus) string {
	var b strings.Builder
	b.WriteString("| | Badge | Category | Description |\n|---|---|---|---|\n")
	for _, s := range badges {
		mark := " "
		if s.Earned {
			mark = "x"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", mark, badgeTitle(s.Badge), s.Category, s.Description)
	}
	return b.String()
}

func leaderboardMarkdown(entries []sdk.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "Leaderboard is empty.\n"
	}
	var b strings.Builder
	b.WriteString("| # | User | Level | XP |\n|---|---|---|---|\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "| %d | %s | %d | %d |\n", i+1, e.UserID, e.Level, e.TotalXP)
	}
	return b.String()
}

func noticeLine(n core.Notice) string {
	switch n.Type {
	case core.NoticeXPGained:
		return fmt.Sprintf("%s +%d XP (%s), total %d", n.UserID, n.Delta, n.EventType, n.Total)
	case core.NoticeLevelUp:
		return fmt.Sprintf("%s reached level %d", n.UserID, n.Level)
	case core.NoticeStreakIncremented:
		return fmt.Sprintf("%s streak %d", n.UserID, n.Streak)
	case core.NoticeBadgeUnlocked:
		if n.Badge != nil {
			return fmt.Sprintf("%s unlocked %s", n.UserID, badgeTitle(*n.Badge))
		}
	}
	return fmt.Sprintf("%s %s", n.UserID, n.Type)
}
