package core

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// EventType tags the variants of Event.
type EventType string

const (
	EventLogin           EventType = "login"
	EventModuleCompleted EventType = "module_completed"
	EventQuizCompleted   EventType = "quiz_completed"
	EventPositionAdded   EventType = "portfolio_position_added"
	EventPositionUpdated EventType = "portfolio_position_updated"
)

// EventTypes lists every known variant in a stable order.
var EventTypes = []EventType{
	EventLogin,
	EventModuleCompleted,
	EventQuizCompleted,
	EventPositionAdded,
	EventPositionUpdated,
}

// Event is a user action that may yield rewards. The set of variants is closed.
type Event interface {
	Type() EventType
	Validate() error
	event()
}

// Login is raised when the user signs in.
type Login struct{}

// ModuleCompleted is raised when a learning module is finished.
type ModuleCompleted struct {
	ModuleID  string
	FirstTime bool
}

// QuizCompleted is raised when a quiz is submitted. Score is a percentage.
type QuizCompleted struct {
	Score       float64
	CompletedAt time.Time
}

// PositionAdded is raised when a portfolio position is created.
type PositionAdded struct {
	PositionID string
}

// PositionUpdated is raised when a portfolio position is edited.
type PositionUpdated struct {
	PositionID string
}

func (Login) Type() EventType           { return EventLogin }
func (ModuleCompleted) Type() EventType { return EventModuleCompleted }
func (QuizCompleted) Type() EventType   { return EventQuizCompleted }
func (PositionAdded) Type() EventType   { return EventPositionAdded }
func (PositionUpdated) Type() EventType { return EventPositionUpdated }

func (Login) event()           {}
func (ModuleCompleted) event() {}
func (QuizCompleted) event()   {}
func (PositionAdded) event()   {}
func (PositionUpdated) event() {}

func (Login) Validate() error { return nil }

func (e ModuleCompleted) Validate() error {
	if strings.TrimSpace(e.ModuleID) == "" {
		return invalid("module_id", "required")
	}
	return nil
}

func (e QuizCompleted) Validate() error {
	if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
		return invalid("quiz_score", "must be finite")
	}
	if e.Score < 0 || e.Score > 100 {
		return invalid("quiz_score", "%v out of range [0,100]", e.Score)
	}
	if e.CompletedAt.IsZero() {
		return invalid("quiz_completed_at", "required")
	}
	return nil
}

func (e PositionAdded) Validate() error {
	if strings.TrimSpace(e.PositionID) == "" {
		return invalid("portfolio_position_id", "required")
	}
	return nil
}

func (e PositionUpdated) Validate() error {
	if strings.TrimSpace(e.PositionID) == "" {
		return invalid("portfolio_position_id", "required")
	}
	return nil
}

// EventPayload is the flat wire form of an Event: {event_type, ...payload fields}.
type EventPayload struct {
	EventType           EventType  `json:"event_type" validate:"required,oneof=login module_completed quiz_completed portfolio_position_added portfolio_position_updated"`
	ModuleID            string     `json:"module_id,omitempty"`
	FirstTimeForModule  *bool      `json:"is_first_time_for_module,omitempty"`
	QuizScore           *float64   `json:"quiz_score,omitempty"`
	QuizCompletedAt     *time.Time `json:"quiz_completed_at,omitempty"`
	PortfolioPositionID string     `json:"portfolio_position_id,omitempty"`
}

// PayloadOf flattens an event into its wire form.
func PayloadOf(ev Event) EventPayload {
	p := EventPayload{EventType: ev.Type()}
	switch e := ev.(type) {
	case ModuleCompleted:
		first := e.FirstTime
		p.ModuleID = e.ModuleID
		p.FirstTimeForModule = &first
	case QuizCompleted:
		score, at := e.Score, e.CompletedAt.UTC()
		p.QuizScore = &score
		p.QuizCompletedAt = &at
	case PositionAdded:
		p.PortfolioPositionID = e.PositionID
	case PositionUpdated:
		p.PortfolioPositionID = e.PositionID
	}
	return p
}

// Event rebuilds the typed event and validates it.
func (p EventPayload) Event() (Event, error) {
	var ev Event
	switch p.EventType {
	case EventLogin:
		ev = Login{}
	case EventModuleCompleted:
		ev = ModuleCompleted{ModuleID: p.ModuleID, FirstTime: p.FirstTimeForModule != nil && *p.FirstTimeForModule}
	case EventQuizCompleted:
		if p.QuizScore == nil {
			return nil, invalid("quiz_score", "required")
		}
		if p.QuizCompletedAt == nil {
			return nil, invalid("quiz_completed_at", "required")
		}
		ev = QuizCompleted{Score: *p.QuizScore, CompletedAt: *p.QuizCompletedAt}
	case EventPositionAdded:
		ev = PositionAdded{PositionID: p.PortfolioPositionID}
	case EventPositionUpdated:
		ev = PositionUpdated{PositionID: p.PortfolioPositionID}
	case "":
		return nil, invalid("event_type", "required")
	default:
		return nil, invalid("event_type", "unknown event type %q", p.EventType)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// MarshalEvent encodes an event in its wire form.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(PayloadOf(ev))
}

// UnmarshalEvent decodes and validates an event from its wire form.
func UnmarshalEvent(b []byte) (Event, error) {
	var p EventPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, invalid("", "malformed event: %v", err)
	}
	return p.Event()
}
