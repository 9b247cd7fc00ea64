package core

import (
	"errors"
	"fmt"
	"strings"
)

// Reward is the XP paid for one event type.
type Reward struct {
	Base        int64 `json:"base"`
	StreakBonus int64 `json:"streak_bonus"`
}

// RewardTable configures XP per event type. Values are a product decision;
// DefaultRewards holds the reference configuration.
type RewardTable struct {
	Events               map[EventType]Reward `json:"events"`
	ModuleFirstTimeBonus int64                `json:"module_first_time_bonus"`
	QuizPassScore        float64              `json:"quiz_pass_score"`
	QuizPassBonus        int64                `json:"quiz_pass_bonus"`
}

// DefaultRewards returns the reference reward configuration.
func DefaultRewards() RewardTable {
	return RewardTable{
		Events: map[EventType]Reward{
			EventLogin:           {Base: 10},
			EventModuleCompleted: {Base: 20},
			EventQuizCompleted:   {Base: 10, StreakBonus: 2},
			EventPositionAdded:   {Base: 40},
			EventPositionUpdated: {Base: 5},
		},
		ModuleFirstTimeBonus: 30,
		QuizPassScore:        80,
		QuizPassBonus:        0,
	}
}

// Validate rejects negative rewards and unknown event types.
func (t RewardTable) Validate() error {
	var errs []string
	known := make(map[EventType]bool, len(EventTypes))
	for _, et := range EventTypes {
		known[et] = true
	}
	for et, r := range t.Events {
		if !known[et] {
			errs = append(errs, fmt.Sprintf("unknown event type %q", et))
		}
		if r.Base < 0 || r.StreakBonus < 0 {
			errs = append(errs, fmt.Sprintf("%s: rewards must be non-negative", et))
		}
	}
	if t.ModuleFirstTimeBonus < 0 {
		errs = append(errs, "module_first_time_bonus must be non-negative")
	}
	if t.QuizPassBonus < 0 {
		errs = append(errs, "quiz_pass_bonus must be non-negative")
	}
	if t.QuizPassScore < 0 || t.QuizPassScore > 100 {
		errs = append(errs, "quiz_pass_score must be within [0,100]")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Base returns the XP paid for the event before any streak bonus.
func (t RewardTable) Base(ev Event) int64 {
	xp := t.Events[ev.Type()].Base
	switch e := ev.(type) {
	case ModuleCompleted:
		if e.FirstTime {
			xp += t.ModuleFirstTimeBonus
		}
	case QuizCompleted:
		if e.Score >= t.QuizPassScore {
			xp += t.QuizPassBonus
		}
	}
	return xp
}

// StreakBonus returns the bonus paid when the event extends the streak.
func (t RewardTable) StreakBonus(et EventType) int64 {
	return t.Events[et].StreakBonus
}
