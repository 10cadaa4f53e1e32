package app

import (
	"sync"

	"github.com/dkeye/HangHub/internal/domain"
)

// roomLocks hands out one mutex per room key, created on demand and
// dropped when no goroutine holds or waits for it.
type roomLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomKey]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func (l *roomLocks) lock(key domain.RoomKey) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[domain.RoomKey]*roomLock)
	}
	rl, ok := l.locks[key]
	if !ok {
		rl = &roomLock{}
		l.locks[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
