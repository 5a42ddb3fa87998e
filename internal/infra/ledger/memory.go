package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is the in-process ledger for local mode and tests. Same
// write-once semantics as the durable backends, no persistence.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

func (l *MemoryLedger) Seen(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok, nil
}

func (l *MemoryLedger) Record(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[id] = struct{}{}
	return nil
}
