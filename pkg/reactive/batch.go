package reactive

import (
	"sync"
	"sync/atomic"
)

// notifier is a state with a deferred notification.
type notifier interface {
	notify()
}

// Scope groups states that are batched together. Each flow owns its own
// scope, so batches of independent flows never mix.
type Scope struct {
	batch atomic.Pointer[Batch]
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

func (sc *Scope) current() *Batch {
	if sc == nil {
		return nil
	}
	return sc.batch.Load()
}

// RunBatch executes fn within a batch context. Nested batches join the
// outermost one.
func (sc *Scope) RunBatch(fn func()) {
	if outer := sc.batch.Load(); outer != nil && outer.isActive() {
		fn()
		return
	}
	batch := NewBatch()
	sc.batch.Store(batch)

	defer func() {
		sc.batch.Store(nil)
		batch.Commit()
	}()

	fn()
}

// Begin starts a batch that the caller commits itself, typically after
// releasing its own locks. It returns nil when a batch is already running;
// writes then join that batch.
func (sc *Scope) Begin() *Batch {
	if outer := sc.batch.Load(); outer != nil && outer.isActive() {
		return nil
	}
	b := NewBatch()
	sc.batch.Store(b)
	return b
}

// Release stops collecting writes into b. b still has to be committed.
// Releasing nil is a no-op.
func (sc *Scope) Release(b *Batch) {
	if b != nil {
		sc.batch.CompareAndSwap(b, nil)
	}
}

// Batch allows multiple state updates without notifying listeners until the
// batch completes. Each state notifies at most once per batch, with its
// final value.
type Batch struct {
	dirty  []notifier
	mu     sync.Mutex
	active bool
}

// NewBatch creates a new batch context
func NewBatch() *Batch {
	return &Batch{active: true}
}

func (b *Batch) isActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Batch) add(n notifier) {
	b.mu.Lock()
	if b.active {
		b.dirty = append(b.dirty, n)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	// raced with Commit
	n.notify()
}

// Commit notifies every state touched during the batch, in first-write
// order.
func (b *Batch) Commit() {
	b.mu.Lock()
	b.active = false
	dirty := b.dirty
	b.dirty = nil
	b.mu.Unlock()

	if debugLog != nil {
		debugLog("[Batch] Committing", len(dirty), "states")
	}
	for _, n := range dirty {
		n.notify()
	}
}
