package engine

import (
	"context"

	"finquest/core"
)

// Storage abstracts persistence for gamification state.
//
// Update performs an atomic read-modify-write of one user's state: fn receives
// the current state (defaults for unknown users) and returns the state to
// store. If fn fails nothing is written and its error is returned. fn may be
// invoked more than once by optimistic implementations.
type Storage interface {
	GetState(ctx context.Context, user core.UserID) (core.State, error)
	Update(ctx context.Context, user core.UserID, fn func(core.State) (core.State, error)) (core.State, error)
}
