package analytics

import (
	"encoding/json"
	"net/http"
	"time"
)

// Report is a point-in-time KPI snapshot.
type Report struct {
	Day                string        `json:"day"`
	DailyActiveUsers   int           `json:"daily_active_users"`
	WeeklyActiveUsers  int           `json:"weekly_active_users"`
	MonthlyActiveUsers int           `json:"monthly_active_users"`
	XPAwarded          int64         `json:"xp_awarded"`
	BadgesUnlocked     int64         `json:"badges_unlocked"`
	TopBadges          []BadgeCount  `json:"top_badges"`
	Levels             map[int64]int `json:"level_distribution"`
	Streaks            map[int64]int `json:"streak_distribution"`
}

// Snapshot builds the report for the day containing now.
func (m *Metrics) Snapshot(now time.Time) Report {
	day := dayKey(now)
	return Report{
		Day:                day,
		DailyActiveUsers:   m.DailyActiveUsers(day),
		WeeklyActiveUsers:  m.WeeklyActiveUsers(weekKey(now)),
		MonthlyActiveUsers: m.MonthlyActiveUsers(monthKey(now)),
		XPAwarded:          m.XPByDay(day),
		BadgesUnlocked:     m.BadgesByDay(day),
		TopBadges:          m.TopBadges(5),
		Levels:             m.LevelDistribution(),
		Streaks:            m.StreakDistribution(),
	}
}

// ReportHandler serves the current snapshot as JSON.
func ReportHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot(time.Now()))
	})
}
