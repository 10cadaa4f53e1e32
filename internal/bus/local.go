package bus

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/HangHub/internal/domain"
)

// Local is an in-process Bus. Publish delivers synchronously to every
// handler subscribed to the room, so handlers must not hold locks that a
// nested Publish could need.
type Local struct {
	mu       sync.RWMutex
	handlers map[domain.RoomKey][]Handler
	closed   bool
}

func NewLocal() *Local {
	return &Local{handlers: make(map[domain.RoomKey][]Handler)}
}

var _ Bus = (*Local)(nil)

func (l *Local) Publish(_ context.Context, msg Message) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	hs := slices.Clone(l.handlers[msg.Room])
	l.mu.RUnlock()

	for _, h := range hs {
		m := msg
		m.Members = slices.Clone(msg.Members)
		h.HandleMessage(m)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, key domain.RoomKey, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if slices.Contains(l.handlers[key], h) {
		return nil
	}
	l.handlers[key] = append(l.handlers[key], h)
	return nil
}

func (l *Local) Unsubscribe(_ context.Context, key domain.RoomKey, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	hs := slices.DeleteFunc(slices.Clone(l.handlers[key]), func(x Handler) bool { return x == h })
	if len(hs) == 0 {
		delete(l.handlers, key)
	} else {
		l.handlers[key] = hs
	}
	return nil
}

func (l *Local) Ping(context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.handlers = make(map[domain.RoomKey][]Handler)
	return nil
}

// Subscribers reports how many handlers listen on a room.
func (l *Local) Subscribers(key domain.RoomKey) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers[key])
}
