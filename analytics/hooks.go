package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finquest/core"
)

// Hook receives notices for KPI aggregation.
type Hook interface {
	OnNotice(n core.Notice)
}

// Handler adapts a hook to an engine bus subscription.
func Handler(h Hook) func(context.Context, core.Notice) {
	return func(_ context.Context, n core.Notice) { h.OnNotice(n) }
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnNotice(n core.Notice) {
	day := dayKey(n.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[n.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// Metrics aggregates engagement, XP, level, streak and badge KPIs.
type Metrics struct {
	mu sync.RWMutex

	dailyActiveUsers   map[string]map[core.UserID]struct{}
	weeklyActiveUsers  map[string]map[core.UserID]struct{}
	monthlyActiveUsers map[string]map[core.UserID]struct{}

	xpByDay       map[string]int64
	xpByEventType map[core.EventType]int64

	badgesByDay   map[string]int64
	badgesByCode  map[string]int64
	badgeHolders  map[string]map[core.UserID]struct{}
	levelsByDay   map[string]int64
	currentLevel  map[core.UserID]int64
	longestStreak map[core.UserID]int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		dailyActiveUsers:   make(map[string]map[core.UserID]struct{}),
		weeklyActiveUsers:  make(map[string]map[core.UserID]struct{}),
		monthlyActiveUsers: make(map[string]map[core.UserID]struct{}),
		xpByDay:            make(map[string]int64),
		xpByEventType:      make(map[core.EventType]int64),
		badgesByDay:        make(map[string]int64),
		badgesByCode:       make(map[string]int64),
		badgeHolders:       make(map[string]map[core.UserID]struct{}),
		levelsByDay:        make(map[string]int64),
		currentLevel:       make(map[core.UserID]int64),
		longestStreak:      make(map[core.UserID]int64),
	}
}

func (m *Metrics) OnNotice(n core.Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(n.Time)
	addUser(m.dailyActiveUsers, day, n.UserID)
	addUser(m.weeklyActiveUsers, weekKey(n.Time), n.UserID)
	addUser(m.monthlyActiveUsers, monthKey(n.Time), n.UserID)

	switch n.Type {
	case core.NoticeXPGained:
		if n.Delta > 0 {
			m.xpByDay[day] += n.Delta
			m.xpByEventType[n.EventType] += n.Delta
		}
		if _, ok := m.currentLevel[n.UserID]; !ok {
			m.currentLevel[n.UserID] = core.LevelFor(n.Total)
		}
	case core.NoticeLevelUp:
		m.levelsByDay[day]++
		m.currentLevel[n.UserID] = n.Level
	case core.NoticeStreakIncremented:
		if n.Streak > m.longestStreak[n.UserID] {
			m.longestStreak[n.UserID] = n.Streak
		}
	case core.NoticeBadgeUnlocked:
		if n.Badge == nil {
			return
		}
		m.badgesByDay[day]++
		m.badgesByCode[n.Badge.Code]++
		addUser(m.badgeHolders, n.Badge.Code, n.UserID)
	}
}

func addUser(m map[string]map[core.UserID]struct{}, key string, user core.UserID) {
	if m[key] == nil {
		m[key] = make(map[core.UserID]struct{})
	}
	m[key][user] = struct{}{}
}

// DailyActiveUsers returns the count of users seen on day (YYYY-MM-DD).
func (m *Metrics) DailyActiveUsers(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActiveUsers[day])
}

// WeeklyActiveUsers returns the count of users seen in an ISO week (YYYY-Www).
func (m *Metrics) WeeklyActiveUsers(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActiveUsers[week])
}

// MonthlyActiveUsers returns the count of users seen in a month (YYYY-MM).
func (m *Metrics) MonthlyActiveUsers(month string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monthlyActiveUsers[month])
}

func (m *Metrics) XPByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpByDay[day]
}

func (m *Metrics) XPByEventType(et core.EventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpByEventType[et]
}

func (m *Metrics) BadgesByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badgesByDay[day]
}

// BadgeHolders returns how many distinct users unlocked code.
func (m *Metrics) BadgeHolders(code string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.badgeHolders[code])
}

// LevelDistribution maps level to the number of users currently at it.
func (m *Metrics) LevelDistribution() map[int64]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]int)
	for _, lvl := range m.currentLevel {
		out[lvl]++
	}
	return out
}

// StreakDistribution maps the longest streak seen to the number of users.
func (m *Metrics) StreakDistribution() map[int64]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]int)
	for _, s := range m.longestStreak {
		out[s]++
	}
	return out
}

// BadgeCount is the unlock count of one badge.
type BadgeCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// TopBadges returns the most unlocked badges, most frequent first.
func (m *Metrics) TopBadges(limit int) []BadgeCount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BadgeCount, 0, len(m.badgesByCode))
	for code, n := range m.badgesByCode {
		out = append(out, BadgeCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Code < out[j].Code
		}
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }
