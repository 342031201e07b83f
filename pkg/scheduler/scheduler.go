package scheduler

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the frame interval used when none is given (~60fps).
const DefaultInterval = 16 * time.Millisecond

// FrameFunc is called once per frame with the frame time. It returns true
// when the task is finished and should not run again.
type FrameFunc func(now time.Time) bool

// ErrorHandler handles panics during a frame
// Returns true to keep the task scheduled, false to drop it
type ErrorHandler func(task *Task, err interface{}) bool

// Task is a unit of per-frame work, typically a viewport transition
type Task struct {
	id    uint32
	frame FrameFunc

	cancelled atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once

	onError ErrorHandler
}

// ID returns the task's unique ID
func (t *Task) ID() uint32 {
	return t.id
}

// Cancel stops the task before its next frame. Cancel never blocks and
// does not wait for a frame already running.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	t.finish()
}

// Cancelled reports whether Cancel was called
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed once the task finished or was cancelled
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// SetErrorHandler sets a custom error handler for this task
func (t *Task) SetErrorHandler(handler ErrorHandler) {
	t.onError = handler
}

func (t *Task) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}

// debugLog is set by platform-specific code
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Scheduler runs frame tasks at a fixed interval on its own goroutine.
// Frames can also be driven by hand with RunFrame.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[uint32]*Task
	order    []uint32
	nextID   uint32
	interval time.Duration
	wake     chan struct{}
	stop     chan struct{}
	running  atomic.Bool

	defaultError ErrorHandler
}

// NewScheduler creates a new scheduler instance
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		tasks:    make(map[uint32]*Task),
		nextID:   1,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// SetDefaultErrorHandler sets the default error handler for tasks
func (s *Scheduler) SetDefaultErrorHandler(handler ErrorHandler) {
	s.defaultError = handler
}

// Schedule registers fn to run every frame until it reports completion or
// is cancelled.
func (s *Scheduler) Schedule(fn FrameFunc) *Task {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	task := &Task{
		id:      id,
		frame:   fn,
		done:    make(chan struct{}),
		onError: s.defaultError,
	}
	s.tasks[id] = task
	s.order = append(s.order, id)
	s.mu.Unlock()

	if debugLog != nil {
		debugLog("[Scheduler] Scheduled task", id)
	}

	// wake the loop if it is idle
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return task
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	if s.running.CompareAndSwap(false, true) {
		if debugLog != nil {
			debugLog("[Scheduler] Starting scheduler loop")
		}
		s.mu.Lock()
		s.stop = make(chan struct{})
		stop := s.stop
		s.mu.Unlock()
		go s.loop(stop)
	} else if debugLog != nil {
		debugLog("[Scheduler] Scheduler already running")
	}
}

// Stop stops the scheduler loop. Pending tasks stay registered.
func (s *Scheduler) Stop() {
	if s.running.CompareAndSwap(true, false) {
		s.mu.Lock()
		close(s.stop)
		s.mu.Unlock()
	}
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// TaskCount returns the number of registered tasks
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// loop is the main scheduler event loop
func (s *Scheduler) loop(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if s.TaskCount() == 0 {
			// Block waiting for work
			select {
			case <-stop:
				return
			case <-s.wake:
			}
		}
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.RunFrame(now)
		}
	}
}

// RunFrame runs one frame of every registered task and drops the ones that
// finished or were cancelled.
func (s *Scheduler) RunFrame(now time.Time) {
	s.mu.Lock()
	batch := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		batch = append(batch, s.tasks[id])
	}
	s.mu.Unlock()

	for _, task := range batch {
		if task.Cancelled() || s.runTask(task, now) {
			s.remove(task)
		}
	}
}

// runTask runs one frame of task and reports whether it is finished
func (s *Scheduler) runTask(task *Task, now time.Time) (finished bool) {
	defer func() {
		if r := recover(); r != nil {
			finished = !s.handleTaskError(task, r)
		}
	}()
	return task.frame(now)
}

// handleTaskError handles a panic during a frame
func (s *Scheduler) handleTaskError(task *Task, err interface{}) bool {
	errorMsg := fmt.Sprintf("Task %d panic: %v\n%s", task.id, err, debug.Stack())
	if debugLog != nil {
		debugLog("[Scheduler]", errorMsg)
	}
	if task.onError != nil {
		return task.onError(task, errorMsg)
	}
	return false
}

func (s *Scheduler) remove(task *Task) {
	s.mu.Lock()
	delete(s.tasks, task.id)
	for i, id := range s.order {
		if id == task.id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	task.finish()
}
