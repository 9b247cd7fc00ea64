package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SignalLogin asks the attached coordinator to process a login event.
const SignalLogin = "gamification:login"

// Signal is one raised instance of a named signal.
type Signal struct {
	ID   uuid.UUID
	Name string
	At   time.Time
}

// Signals is a small named publish/subscribe channel. It lets any part of an
// application raise a gamification signal without holding a coordinator.
type Signals struct {
	mu   sync.RWMutex
	subs map[string]map[int]func(Signal)
	next int
}

func NewSignals() *Signals {
	return &Signals{subs: map[string]map[int]func(Signal){}}
}

// DefaultSignals is the process-wide signal channel.
var DefaultSignals = NewSignals()

// Subscribe registers fn for name and returns its unsubscribe func.
func (s *Signals) Subscribe(name string, fn func(Signal)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	if s.subs[name] == nil {
		s.subs[name] = map[int]func(Signal){}
	}
	s.subs[name][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[name], id)
	}
}

// Raise creates a new signal instance and delivers it.
func (s *Signals) Raise(name string) Signal {
	sig := Signal{ID: uuid.New(), Name: name, At: time.Now()}
	s.Deliver(sig)
	return sig
}

// Deliver hands sig to every subscriber of its name. Redelivering an instance
// is allowed; subscribers deduplicate by ID. A signal without an ID is given one.
func (s *Signals) Deliver(sig Signal) {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	s.mu.RLock()
	handlers := make([]func(Signal), 0, len(s.subs[sig.Name]))
	for _, fn := range s.subs[sig.Name] {
		handlers = append(handlers, fn)
	}
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(sig)
	}
}

// Subscribers returns the number of handlers registered for name.
func (s *Signals) Subscribers(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[name])
}

// RaiseLogin raises SignalLogin on DefaultSignals.
func RaiseLogin() Signal { return DefaultSignals.Raise(SignalLogin) }

// seenSet remembers the most recent signal ids. uuid.Nil is never recorded.
type seenSet struct {
	ids  map[uuid.UUID]struct{}
	ring []uuid.UUID
	pos  int
}

func newSeenSet(size int) *seenSet {
	return &seenSet{ids: make(map[uuid.UUID]struct{}, size), ring: make([]uuid.UUID, size)}
}

// add records id and reports whether it was new.
func (s *seenSet) add(id uuid.UUID) bool {
	if id == uuid.Nil {
		return true
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	if old := s.ring[s.pos]; old != uuid.Nil {
		delete(s.ids, old)
	}
	s.ring[s.pos] = id
	s.pos = (s.pos + 1) % len(s.ring)
	s.ids[id] = struct{}{}
	return true
}
