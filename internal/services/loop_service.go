package services

import (
	"log"
	"sync"
)

// LoopService models the host's cooperative execution step: a single
// goroutine draining a run queue one task at a time, so everything the
// engine mutates is touched by one writer at a time.
//
// Defer enqueues work for the NEXT step: tasks queued while step N is
// draining run in step N+1. Click handling and the non-escapeable reopen
// are routed through here because the triggering host event may still be
// mutating the container during its own delivery.
type LoopService struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stop    chan struct{}
	stopped sync.WaitGroup
}

// NewLoopService creates a loop service. Run must be called to start it.
func NewLoopService() *LoopService {
	return &LoopService{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *LoopService) Start() {
	l.stopped.Add(1)
	go l.run()
	log.Println("🔁 Cooperative loop started")
}

// Stop shuts the loop down after the current step finishes. Tasks still
// queued are dropped.
func (l *LoopService) Stop() {
	close(l.stop)
	l.stopped.Wait()
}

// Defer enqueues fn for the next cooperative step.
func (l *LoopService) Defer(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of tasks waiting for the next step.
func (l *LoopService) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *LoopService) run() {
	defer l.stopped.Done()
	for {
		select {
		case <-l.stop:
			return
		case <-l.wake:
			l.step()
		}
	}
}

// step drains exactly the tasks that were queued when the step began;
// anything they enqueue runs in the following step.
func (l *LoopService) step() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		l.runOne(fn)
	}

	// Work queued during this step wakes the next one.
	l.mu.Lock()
	pending := len(l.queue) > 0
	l.mu.Unlock()
	if pending {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

// runOne executes a task with panic containment: a failure in one deferred
// task must never take down the loop or leak into event delivery.
func (l *LoopService) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in deferred task: %v", r)
		}
	}()
	fn()
}

// RunSync executes fn on the loop and waits for it to finish. Used by the
// admin surface so reload and bulk teardown observe loop ordering.
func (l *LoopService) RunSync(fn func()) {
	done := make(chan struct{})
	l.Defer(func() {
		defer close(done)
		fn()
	})
	<-done
}
