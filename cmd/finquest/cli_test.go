package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finquest/api/httpapi"
	"finquest/coordinator"
	"finquest/core"
	"finquest/engine"
	"finquest/gamify"
	sdk "finquest/sdk/go"
)

func startServer(t *testing.T) {
	t.Helper()
	svc := gamify.New(gamify.WithDispatchMode(engine.DispatchSync))
	srv := httptest.NewServer(httpapi.NewMux(svc, nil, httpapi.Options{PathPrefix: "/api"}))
	t.Cleanup(srv.Close)
	t.Cleanup(svc.Close)

	oldURL, oldUser, oldPlain := *serverURL, *userID, *plain
	*serverURL, *userID, *plain = srv.URL+"/api", "erin", true
	t.Cleanup(func() { *serverURL, *userID, *plain = oldURL, oldUser, oldPlain })
}

func TestTriggerPrintsToasts(t *testing.T) {
	startServer(t)
	var out bytes.Buffer
	status := trigger(context.Background(), &out, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		return c.TriggerPortfolioPositionAdded(ctx, "vwce")
	})
	require.Equal(t, subcommands.ExitSuccess, status)

	s := out.String()
	assert.Contains(t, s, "+40 XP (portfolio position added)")
	assert.Contains(t, s, "Streak: 1 day\n")
	assert.Contains(t, s, "## 2 new badges unlocked")
	assert.Contains(t, s, "**Portfolio Creator**")
	assert.Contains(t, s, "Total 40 XP, level 1, 60 XP to next level, streak 1")
}

func TestTriggerRejectsInvalidEvent(t *testing.T) {
	startServer(t)
	var out bytes.Buffer
	status := trigger(context.Background(), &out, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		return c.TriggerQuizCompleted(ctx, -1, time.Now())
	})
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Empty(t, out.String())
}

func TestTriggerReportsUnreachableServer(t *testing.T) {
	oldURL, oldUser := *serverURL, *userID
	*serverURL, *userID = "http://127.0.0.1:1/api", "erin"
	defer func() { *serverURL, *userID = oldURL, oldUser }()

	var out bytes.Buffer
	status := trigger(context.Background(), &out, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		return c.TriggerLogin(ctx)
	})
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Empty(t, out.String())
}

func TestMarkdownRendering(t *testing.T) {
	st := core.State{UserID: "erin", TotalXP: 150, CurrentStreak: 2, LastCheckIn: core.NewDate(2025, 3, 11),
		Badges: []core.Badge{{Code: "day1", Name: "First Day"}}}.Normalize()
	md := stateMarkdown(st)
	assert.Contains(t, md, "| 2 | 150 | 50 | 2 | 2025-03-11 |")
	assert.Contains(t, md, "- **First Day**")

	assert.Contains(t, stateMarkdown(core.NewState("new")), "No badges yet.")
	assert.Contains(t, badgeMarkdown([]core.Badge{{Code: "streak3", Description: "3-day streak"}}), "- **streak3**: 3-day streak")

	cat := catalogMarkdown([]sdk.BadgeStatus{{Badge: core.Badge{Code: "day1", Name: "First Day"}, Earned: true}})
	assert.Contains(t, cat, "| x | First Day |")

	assert.Equal(t, "Leaderboard is empty.\n", leaderboardMarkdown(nil))
	assert.Contains(t, leaderboardMarkdown([]sdk.LeaderboardEntry{{UserID: "erin", TotalXP: 150, Level: 2}}), "| 1 | erin | 2 | 150 |")
}

func TestNoticeLine(t *testing.T) {
	assert.Equal(t, "erin +10 XP (login), total 10", noticeLine(core.NewXPGained("erin", core.EventLogin, 10, 10)))
	assert.Equal(t, "erin unlocked First Day", noticeLine(core.Notice{Type: core.NoticeBadgeUnlocked, UserID: "erin", Badge: &core.Badge{Name: "First Day"}}))
}
