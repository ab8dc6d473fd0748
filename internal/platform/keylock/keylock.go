// Package keylock serializes mutations per entity. Two concurrent assigns
// against the same cold storage, or two concurrent resolutions of the same
// appointment detail, must not both pass their precondition checks;
// acquiring the entity's lock before the check-then-write sequence rules
// that out in-process. Acquisition is bounded: a caller that cannot get the
// lock in time receives a retryable CONTENTION violation instead of queueing
// indefinitely.
package keylock

import (
	"sync"
	"time"

	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

// Keeper hands out one mutex per key.
type Keeper struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

type entry struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// NewKeeper creates a Keeper whose Acquire gives up after timeout.
func NewKeeper(timeout time.Duration) *Keeper {
	return &Keeper{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Acquire takes the lock for key, returning a release func. When the lock
// cannot be taken within the keeper's timeout it returns a CONTENTION
// violation and the caller should retry.
func (k *Keeper) Acquire(key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case <-e.ch:
		return func() { k.release(key, e) }, nil
	case <-timer.C:
		k.unref(key, e)
		return nil, rules.New(rules.Contention, "lock on %s not acquired within %s", key, k.timeout)
	}
}

func (k *Keeper) release(key string, e *entry) {
	e.ch <- struct{}{}
	k.unref(key, e)
}

func (k *Keeper) unref(key string, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
