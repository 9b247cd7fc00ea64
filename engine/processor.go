package engine

import (
	"context"

	"finquest/core"
)

// Processor binds a service to one user. It serves as an in-process event
// processor for a client-side coordinator.
type Processor struct {
	svc  *GamifyService
	user core.UserID
}

// Bind returns a Processor acting on behalf of user.
func Bind(svc *GamifyService, user core.UserID) *Processor {
	return &Processor{svc: svc, user: user}
}

func (p *Processor) SendEvent(ctx context.Context, ev core.Event) (core.Result, error) {
	return p.svc.ProcessEvent(ctx, p.user, ev)
}

func (p *Processor) GetState(ctx context.Context) (core.State, error) {
	return p.svc.GetState(ctx, p.user)
}
