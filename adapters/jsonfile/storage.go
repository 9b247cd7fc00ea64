package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finquest/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]core.State
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]core.State{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.State
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v.Normalize()
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.State, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) core.State {
	if st, ok := s.data[user]; ok {
		return st
	}
	st := core.NewState(user)
	st.Updated = time.Now().UTC()
	return st
}

func (s *Store) GetState(_ context.Context, user core.UserID) (core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Clone(), nil
}

// Update applies fn and persists the file before returning. A failed persist
// rolls the cached state back.
func (s *Store) Update(_ context.Context, user core.UserID, fn func(core.State) (core.State, error)) (core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data[user]
	next, err := fn(s.get(user).Clone())
	if err != nil {
		return core.State{}, err
	}
	next.UserID = user
	next = next.Normalize()
	s.data[user] = next
	if err := s.persist(); err != nil {
		if existed {
			s.data[user] = prev
		} else {
			delete(s.data, user)
		}
		return core.State{}, err
	}
	return next.Clone(), nil
}

// States returns a copy of every stored state.
func (s *Store) States() []core.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.State, 0, len(s.data))
	for _, st := range s.data {
		out = append(out, st.Clone())
	}
	return out
}
