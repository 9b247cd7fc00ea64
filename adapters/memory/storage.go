package memory

import (
	"context"
	"sync"
	"time"

	"finquest/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu    sync.Mutex
	state core.State
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	st := core.NewState(user)
	st.Updated = time.Now().UTC()
	actual, _ := s.users.LoadOrStore(user, &userRecord{state: st})
	return actual.(*userRecord)
}

// GetState returns the stored state. Unknown users get defaults and are not
// recorded.
func (s *Store) GetState(_ context.Context, user core.UserID) (core.State, error) {
	v, ok := s.users.Load(user)
	if !ok {
		st := core.NewState(user)
		st.Updated = time.Now().UTC()
		return st, nil
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state.Clone(), nil
}

// Update serializes writers of the same user behind the record mutex.
func (s *Store) Update(_ context.Context, user core.UserID, fn func(core.State) (core.State, error)) (core.State, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := fn(rec.state.Clone())
	if err != nil {
		return core.State{}, err
	}
	next.UserID = user
	rec.state = next.Normalize().Clone()
	return next.Normalize(), nil
}

// Users returns the ids of every user with a stored state.
func (s *Store) Users() []core.UserID {
	var out []core.UserID
	s.users.Range(func(k, _ any) bool {
		out = append(out, k.(core.UserID))
		return true
	})
	return out
}

var _ interface {
	GetState(context.Context, core.UserID) (core.State, error)
	Update(context.Context, core.UserID, func(core.State) (core.State, error)) (core.State, error)
} = (*Store)(nil)
