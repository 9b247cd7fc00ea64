package core

import "time"

// NoticeType enumerates the domain notices emitted after an event is processed.
type NoticeType string

const (
	NoticeXPGained          NoticeType = "xp_gained"
	NoticeLevelUp           NoticeType = "level_up"
	NoticeStreakIncremented NoticeType = "streak_incremented"
	NoticeBadgeUnlocked     NoticeType = "badge_unlocked"
)

// NoticeTypes lists every notice type.
var NoticeTypes = []NoticeType{NoticeXPGained, NoticeLevelUp, NoticeStreakIncremented, NoticeBadgeUnlocked}

// Notice is an immutable record of something that changed for a user.
type Notice struct {
	Type      NoticeType `json:"type"`
	Time      time.Time  `json:"time"`
	UserID    UserID     `json:"user_id"`
	EventType EventType  `json:"event_type,omitempty"`
	Delta     int64      `json:"delta,omitempty"`
	Total     int64      `json:"total,omitempty"`
	Level     int64      `json:"level,omitempty"`
	Streak    int64      `json:"streak,omitempty"`
	Badge     *Badge     `json:"badge,omitempty"`
}

func NewXPGained(user UserID, ev EventType, delta, total int64) Notice {
	return Notice{Type: NoticeXPGained, Time: time.Now().UTC(), UserID: user, EventType: ev, Delta: delta, Total: total}
}

func NewLevelUp(user UserID, level int64) Notice {
	return Notice{Type: NoticeLevelUp, Time: time.Now().UTC(), UserID: user, Level: level}
}

func NewStreakIncremented(user UserID, streak int64) Notice {
	return Notice{Type: NoticeStreakIncremented, Time: time.Now().UTC(), UserID: user, Streak: streak}
}

func NewBadgeUnlocked(user UserID, badge Badge) Notice {
	b := badge
	return Notice{Type: NoticeBadgeUnlocked, Time: time.Now().UTC(), UserID: user, Badge: &b}
}

// NoticesFor derives the notices of one processed event, in display order.
func NoticesFor(user UserID, out Outcome) []Notice {
	var ns []Notice
	if out.XPGained > 0 {
		ns = append(ns, NewXPGained(user, out.EventType, out.XPGained, out.TotalXP))
	}
	if out.StreakIncremented {
		ns = append(ns, NewStreakIncremented(user, out.CurrentStreak))
	}
	if out.LevelUp {
		ns = append(ns, NewLevelUp(user, out.Level))
	}
	for _, b := range out.NewBadges {
		ns = append(ns, NewBadgeUnlocked(user, b))
	}
	return ns
}
