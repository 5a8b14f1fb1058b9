package services

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDeferRunsTask(t *testing.T) {
	loop := NewLoopService()
	loop.Start()
	defer loop.Stop()

	done := make(chan struct{})
	loop.Defer(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred task did not run")
	}
}

func TestDeferredTaskRunsInNextStep(t *testing.T) {
	loop := NewLoopService()
	loop.Start()
	defer loop.Stop()

	var order []string
	done := make(chan struct{})
	loop.RunSync(func() {
		order = append(order, "first")
		// Queued mid-step: must not run until this step finishes.
		loop.Defer(func() {
			order = append(order, "second")
			close(done)
		})
		order = append(order, "first-end")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested deferred task did not run")
	}

	want := []string{"first", "first-end", "second"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestPanicInTaskDoesNotKillLoop(t *testing.T) {
	loop := NewLoopService()
	loop.Start()
	defer loop.Stop()

	loop.Defer(func() { panic("boom") })

	// The loop must survive and keep executing tasks.
	var ran atomic.Bool
	loop.RunSync(func() { ran.Store(true) })
	if !ran.Load() {
		t.Fatal("loop stopped executing after a panicking task")
	}
}

func TestRunSyncWaits(t *testing.T) {
	loop := NewLoopService()
	loop.Start()
	defer loop.Stop()

	var n atomic.Int32
	loop.RunSync(func() { n.Store(42) })
	if n.Load() != 42 {
		t.Fatal("RunSync returned before the task executed")
	}
}
