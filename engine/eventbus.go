package engine

import (
	"context"
	"sync"

	"finquest/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id  int64
	typ core.NoticeType
	fn  func(context.Context, core.Notice)
}

// EventBus provides thread-safe pub/sub of notices with sync and async dispatch.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.NoticeType]map[int64]subscription
	nextID       int64
	asyncQueue   chan core.Notice
	asyncWorkers int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[core.NoticeType]map[int64]subscription),
		asyncQueue:   make(chan core.Notice, 2048),
		asyncWorkers: 4,
		ctx:          ctx,
		cancel:       cancel,
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case n := <-e.asyncQueue:
					e.dispatchSync(context.Background(), n)
				case <-e.ctx.Done():
					return
				}
			}
		}()
	}
}

// Close stops async workers and waits for in-flight handlers.
func (e *EventBus) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
	})
}

// Subscribe registers a handler for a notice type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.NoticeType, handler func(context.Context, core.Notice)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// SubscribeAll registers handler for every notice type.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Notice)) func() {
	unsubs := make([]func(), 0, len(core.NoticeTypes))
	for _, typ := range core.NoticeTypes {
		unsubs = append(unsubs, e.Subscribe(typ, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish sends a notice to subscribers.
func (e *EventBus) Publish(ctx context.Context, n core.Notice) {
	if e.mode == DispatchAsync {
		select {
		case e.asyncQueue <- n:
		default:
			// Drop if queue full to preserve latency; alternative is blocking
		}
		return
	}
	e.dispatchSync(ctx, n)
}

func (e *EventBus) dispatchSync(ctx context.Context, n core.Notice) {
	e.mu.RLock()
	subs := e.subs[n.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Notice), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, n)
	}
}
