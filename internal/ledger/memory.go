package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger backs tests and Redis-less development. Expiry is checked
// lazily on access.
type MemoryLedger struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func (l *MemoryLedger) FirstSeen(_ context.Context, provider, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := provider + ":" + eventID
	now := l.now()
	if admitted, ok := l.seen[key]; ok && now.Sub(admitted) < l.retention {
		return false, nil
	}
	l.seen[key] = now
	return true, nil
}

func (l *MemoryLedger) Forget(_ context.Context, provider, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, provider+":"+eventID)
	return nil
}

func (l *MemoryLedger) Purge(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]time.Time)
	return nil
}
