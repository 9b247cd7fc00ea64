package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finquest/core"
)

func at(n core.Notice, t time.Time) core.Notice {
	n.Time = t
	return n
}

func TestMetrics_OnNotice(t *testing.T) {
	metrics := NewMetrics()
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	user := core.UserID("user123")

	metrics.OnNotice(at(core.NewXPGained(user, core.EventQuizCompleted, 12, 102), now))
	metrics.OnNotice(at(core.NewStreakIncremented(user, 3), now))
	metrics.OnNotice(at(core.NewLevelUp(user, 2), now))
	metrics.OnNotice(at(core.NewBadgeUnlocked(user, core.Badge{Code: core.BadgeStreak3}), now))
	metrics.OnNotice(at(core.NewXPGained("other", core.EventLogin, 10, 10), now.Add(-24*time.Hour)))

	day := "2025-03-11"
	assert.Equal(t, int64(12), metrics.XPByDay(day))
	assert.Equal(t, int64(12), metrics.XPByEventType(core.EventQuizCompleted))
	assert.Equal(t, int64(1), metrics.BadgesByDay(day))
	assert.Equal(t, 1, metrics.DailyActiveUsers(day))
	assert.Equal(t, 2, metrics.WeeklyActiveUsers("2025-W11"))
	assert.Equal(t, 2, metrics.MonthlyActiveUsers("2025-03"))
	assert.Equal(t, 1, metrics.BadgeHolders(core.BadgeStreak3))
	assert.Equal(t, map[int64]int{2: 1, 1: 1}, metrics.LevelDistribution())
	assert.Equal(t, map[int64]int{3: 1}, metrics.StreakDistribution())
}

func TestMetrics_TopBadges(t *testing.T) {
	metrics := NewMetrics()
	for _, u := range []core.UserID{"a", "b", "c"} {
		metrics.OnNotice(core.NewBadgeUnlocked(u, core.Badge{Code: core.BadgeDay1}))
	}
	metrics.OnNotice(core.NewBadgeUnlocked("a", core.Badge{Code: core.BadgeQuizChamp}))
	metrics.OnNotice(core.NewBadgeUnlocked("a", core.Badge{Code: core.BadgeDiversifier}))

	top := metrics.TopBadges(2)
	require.Len(t, top, 2)
	assert.Equal(t, BadgeCount{Code: core.BadgeDay1, Count: 3}, top[0])
	assert.Equal(t, core.BadgeDiversifier, top[1].Code)
}

func TestBridgeAndDAU(t *testing.T) {
	dau := NewDAU()
	metrics := NewMetrics()
	bridge := NewBridge(dau, metrics)

	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	bridge.OnNotice(at(core.NewXPGained("u1", core.EventLogin, 10, 10), now))
	bridge.OnNotice(at(core.NewXPGained("u1", core.EventLogin, 10, 20), now))
	bridge.OnNotice(at(core.NewXPGained("u2", core.EventLogin, 10, 10), now))

	assert.Equal(t, 2, dau.Count("2025-03-11"))
	assert.Equal(t, int64(30), metrics.XPByDay("2025-03-11"))
}

func TestReportHandler(t *testing.T) {
	metrics := NewMetrics()
	Handler(metrics)(context.Background(), core.NewXPGained("u1", core.EventPositionAdded, 40, 40))

	rec := httptest.NewRecorder()
	ReportHandler(metrics).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, int64(40), report.XPAwarded)
	assert.Equal(t, 1, report.DailyActiveUsers)
}
