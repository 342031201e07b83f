package reactive

import (
	"sync"
	"sync/atomic"
)

// debugLog is set by platform-specific code
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Listener is called with the new value after a state change.
type Listener[T any] func(value T)

// Unsubscribe removes a listener.
type Unsubscribe func()

// Signal is the interface for reactive values
type Signal[T any] interface {
	Get() T
	Set(T)
	Subscribe(fn Listener[T]) Unsubscribe
}

// State represents a reactive state value
type State[T any] struct {
	value T
	mu    sync.RWMutex

	// listeners notified after every write, in subscription order
	listeners map[uint64]Listener[T]
	order     []uint64
	nextID    uint64
	lisMu     sync.RWMutex

	// pending is set while a batch holds back notification
	pending atomic.Bool
	scope   *Scope
}

// NewState creates a new reactive state. States sharing a scope are
// batched together; a nil scope notifies on every write.
func NewState[T any](initial T, scope *Scope) *State[T] {
	return &State[T]{
		value:     initial,
		listeners: make(map[uint64]Listener[T]),
		scope:     scope,
	}
}

// Get returns the current value
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the value and notifies listeners, or defers notification to
// the enclosing batch.
func (s *State[T]) Set(value T) {
	if debugLog != nil {
		debugLog("[State] Set called")
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	s.changed()
}

// Update atomically reads, modifies, and writes the value
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	s.mu.Unlock()

	s.changed()
}

// Subscribe registers fn and returns a function removing it.
func (s *State[T]) Subscribe(fn Listener[T]) Unsubscribe {
	s.lisMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	if debugLog != nil {
		debugLog("[State] Subscribed listener, total:", len(s.listeners))
	}
	s.lisMu.Unlock()

	return func() {
		s.lisMu.Lock()
		defer s.lisMu.Unlock()
		delete(s.listeners, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// ListenerCount returns the number of active listeners.
func (s *State[T]) ListenerCount() int {
	s.lisMu.RLock()
	defer s.lisMu.RUnlock()
	return len(s.listeners)
}

func (s *State[T]) changed() {
	if batch := s.scope.current(); batch != nil && batch.isActive() {
		if s.pending.CompareAndSwap(false, true) {
			batch.add(s)
		}
		return
	}
	s.notify()
}

// notify calls listeners outside the locks so that they may read or write
// the state again.
func (s *State[T]) notify() {
	s.pending.Store(false)
	value := s.Get()

	s.lisMu.RLock()
	fns := make([]Listener[T], 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.lisMu.RUnlock()

	if debugLog != nil {
		debugLog("[State] Notifying", len(fns), "listeners")
	}
	for _, fn := range fns {
		fn(value)
	}
}

// Selector derives a slice of a state and notifies only when that slice
// changes according to equal.
type Selector[T, S any] struct {
	source   *State[T]
	selectFn func(T) S
	equal    func(a, b S) bool
}

// Select builds a selector over source.
func Select[T, S any](source *State[T], selectFn func(T) S, equal func(a, b S) bool) *Selector[T, S] {
	return &Selector[T, S]{source: source, selectFn: selectFn, equal: equal}
}

// Get returns the selected value.
func (sel *Selector[T, S]) Get() S {
	return sel.selectFn(sel.source.Get())
}

// Subscribe calls fn whenever the selected value changes.
func (sel *Selector[T, S]) Subscribe(fn Listener[S]) Unsubscribe {
	var mu sync.Mutex
	last := sel.Get()
	return sel.source.Subscribe(func(v T) {
		next := sel.selectFn(v)
		mu.Lock()
		same := sel.equal != nil && sel.equal(last, next)
		if !same {
			last = next
		}
		mu.Unlock()
		if !same {
			fn(next)
		}
	})
}
