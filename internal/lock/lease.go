// Package lock provides advisory task locks with a lease TTL.
//
// Each periodic task acquires a lease named after its task kind before
// running; acquisition failure means another invocation is already
// running and the caller skips. The TTL bounds how long a crashed
// holder can block future runs.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker hands out leases. TryAcquire returns (nil, nil) when the key
// is currently held by someone else; it never blocks.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
}

// Lease is a held task lock. Release frees it early; otherwise it
// expires after its TTL.
type Lease struct {
	Key     string
	Holder  uuid.UUID
	release func(ctx context.Context) error
}

// Release frees the lease. Releasing an expired or stolen lease is a
// no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l.release == nil {
		return nil
	}
	return l.release(ctx)
}

type memEntry struct {
	holder  uuid.UUID
	expires time.Time
}

// MemoryLocker is an in-process Locker for tests and single-process
// deployments.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memEntry
	now    func() time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases: make(map[string]memEntry),
		now:    time.Now,
	}
}

// TryAcquire implements Locker.
func (m *MemoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if entry, ok := m.leases[key]; ok && entry.expires.After(now) {
		return nil, nil
	}

	holder := uuid.New()
	m.leases[key] = memEntry{holder: holder, expires: now.Add(ttl)}

	return &Lease{
		Key:    key,
		Holder: holder,
		release: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			if entry, ok := m.leases[key]; ok && entry.holder == holder {
				delete(m.leases, key)
			}
			return nil
		},
	}, nil
}
