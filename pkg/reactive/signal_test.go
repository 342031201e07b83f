package reactive

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestState_GetSet(t *testing.T) {
	state := NewState(42, nil)

	// Test initial value
	if got := state.Get(); got != 42 {
		t.Errorf("Expected initial value 42, got %d", got)
	}

	// Test set
	state.Set(100)
	if got := state.Get(); got != 100 {
		t.Errorf("Expected value 100 after Set, got %d", got)
	}
}

func TestState_SubscribeAndUnsubscribe(t *testing.T) {
	state := NewState("hello", nil)

	var got []string
	unsub := state.Subscribe(func(v string) {
		got = append(got, v)
	})

	state.Set("world")
	state.Set("again")
	unsub()
	state.Set("ignored")

	if len(got) != 2 || got[0] != "world" || got[1] != "again" {
		t.Errorf("Expected [world again], got %v", got)
	}
	if state.ListenerCount() != 0 {
		t.Errorf("Expected no listeners after unsubscribe, got %d", state.ListenerCount())
	}
}

func TestState_Update(t *testing.T) {
	state := NewState(10, nil)

	// Test update function
	state.Update(func(v int) int {
		return v * 2
	})

	if got := state.Get(); got != 20 {
		t.Errorf("Expected value 20 after Update, got %d", got)
	}
}

func TestState_ListenerMayWrite(t *testing.T) {
	state := NewState(0, nil)
	state.Subscribe(func(v int) {
		if v < 3 {
			state.Set(v + 1)
		}
	})
	state.Set(1)
	if got := state.Get(); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	state := NewState(0, nil)
	var calls atomic.Int32
	state.Subscribe(func(int) { calls.Add(1) })

	var wg sync.WaitGroup

	// Concurrent writes
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()
			state.Set(val)
		}(i)
	}

	// Concurrent reads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = state.Get()
		}()
	}

	wg.Wait()

	if calls.Load() != 100 {
		t.Errorf("Expected 100 notifications, got %d", calls.Load())
	}
}

func TestBatch_CoalescesNotifications(t *testing.T) {
	scope := NewScope()
	a := NewState(0, scope)
	b := NewState("", scope)

	var aCalls, bCalls int
	var lastA int
	a.Subscribe(func(v int) { aCalls++; lastA = v })
	b.Subscribe(func(string) { bCalls++ })

	scope.RunBatch(func() {
		for i := 1; i <= 10; i++ {
			a.Set(i)
		}
		b.Set("x")
		if aCalls != 0 {
			t.Errorf("Expected no notification inside the batch, got %d", aCalls)
		}
	})

	if aCalls != 1 || bCalls != 1 {
		t.Errorf("Expected one notification per state, got a=%d b=%d", aCalls, bCalls)
	}
	if lastA != 10 {
		t.Errorf("Expected final value 10, got %d", lastA)
	}

	// after the batch, writes notify immediately again
	a.Set(11)
	if aCalls != 2 {
		t.Errorf("Expected immediate notification after batch, got %d", aCalls)
	}
}

func TestBatch_Nested(t *testing.T) {
	scope := NewScope()
	s := NewState(0, scope)
	var calls int
	s.Subscribe(func(int) { calls++ })

	scope.RunBatch(func() {
		s.Set(1)
		scope.RunBatch(func() {
			s.Set(2)
		})
		if calls != 0 {
			t.Errorf("Inner batch must not commit, got %d calls", calls)
		}
	})
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestBatch_ScopesAreIndependent(t *testing.T) {
	s1, s2 := NewScope(), NewScope()
	a := NewState(0, s1)
	b := NewState(0, s2)
	var bCalls int
	b.Subscribe(func(int) { bCalls++ })

	s1.RunBatch(func() {
		a.Set(1)
		b.Set(1)
		if bCalls != 1 {
			t.Errorf("State of another scope must notify immediately, got %d", bCalls)
		}
	})
}

func TestSelector_NotifiesOnlyOnChange(t *testing.T) {
	type view struct {
		zoom  float64
		nodes int
	}
	state := NewState(view{zoom: 1}, nil)
	zoom := Select(state, func(v view) float64 { return v.zoom }, func(a, b float64) bool { return a == b })

	var seen []float64
	zoom.Subscribe(func(z float64) { seen = append(seen, z) })

	state.Set(view{zoom: 1, nodes: 5})
	state.Set(view{zoom: 2, nodes: 5})
	state.Set(view{zoom: 2, nodes: 6})

	if len(seen) != 1 || seen[0] != 2 {
		t.Errorf("Expected [2], got %v", seen)
	}
	if zoom.Get() != 2 {
		t.Errorf("Expected Get 2, got %v", zoom.Get())
	}
}

func TestScope_BeginRelease(t *testing.T) {
	scope := NewScope()
	s := NewState(0, scope)
	var calls int
	s.Subscribe(func(int) { calls++ })

	b := scope.Begin()
	if b == nil {
		t.Fatal("Expected a new batch")
	}
	if nested := scope.Begin(); nested != nil {
		t.Error("Expected nested Begin to join the running batch")
	}
	s.Set(1)
	s.Set(2)
	scope.Release(b)

	// writes after Release are not part of the batch
	s.Set(3)
	if calls != 1 {
		t.Errorf("Expected 1 immediate call after release, got %d", calls)
	}

	b.Commit()
	if calls != 2 {
		t.Errorf("Expected commit to notify once, got %d calls", calls)
	}
	scope.Release(nil)
}
