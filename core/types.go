package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the gamification domain.
type UserID string

// XPPerLevel is the width of every level band.
const XPPerLevel int64 = 100

// Badge is an unlockable achievement, unique by Code.
type Badge struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// Counters track lifetime activity used by count-keyed badge rules.
type Counters struct {
	ModulesCompleted int64 `json:"modules_completed"`
	QuizzesCompleted int64 `json:"quizzes_completed"`
	PositionsAdded   int64 `json:"positions_added"`
}

// State is a snapshot of a user's gamification state.
// Level and XPToNextLevel are derived from TotalXP; call Normalize after loading.
type State struct {
	UserID        UserID    `json:"user_id,omitempty"`
	TotalXP       int64     `json:"total_xp"`
	Level         int64     `json:"level"`
	CurrentStreak int64     `json:"current_streak"`
	LastCheckIn   Date      `json:"last_check_in_date"`
	XPToNextLevel int64     `json:"xp_to_next_level"`
	Badges        []Badge   `json:"badges"`
	Counters      Counters  `json:"counters"`
	Updated       time.Time `json:"updated"`
}

// NewState returns the default state of a user that never triggered an event.
func NewState(user UserID) State {
	return State{UserID: user, Badges: []Badge{}}.Normalize()
}

// Normalize recomputes the derived fields.
func (s State) Normalize() State {
	s.Level = LevelFor(s.TotalXP)
	s.XPToNextLevel = XPToNextLevel(s.TotalXP)
	if s.Badges == nil {
		s.Badges = []Badge{}
	}
	return s
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	cp := s
	cp.Badges = make([]Badge, len(s.Badges))
	copy(cp.Badges, s.Badges)
	return cp
}

// HasBadge reports whether the badge code is already held.
func (s State) HasBadge(code string) bool {
	for _, b := range s.Badges {
		if b.Code == code {
			return true
		}
	}
	return false
}

// LevelFor computes the level for a total XP: floor(xp/100) + 1.
func LevelFor(totalXP int64) int64 {
	if totalXP <= 0 {
		return 1
	}
	return totalXP/XPPerLevel + 1
}

// XPToNextLevel returns the XP missing to reach the next level band.
func XPToNextLevel(totalXP int64) int64 {
	if totalXP < 0 {
		totalXP = 0
	}
	return LevelFor(totalXP)*XPPerLevel - totalXP
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateBadgeID ensures non-empty badge id with simple charset check.
func ValidateBadgeID(code string) error {
	s := strings.TrimSpace(code)
	if s == "" {
		return errors.New("empty badge id")
	}
	// alnum, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid badge id")
	}
	return nil
}
