package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsJobs(t *testing.T) {
	q := NewQueue(nil)
	defer q.Stop()

	done := make(chan struct{})
	q.Enqueue(func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestQueueSurvivesFailuresAndPanics(t *testing.T) {
	var mu sync.Mutex
	var logged []string
	q := NewQueue(func(format string, args ...any) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, args...))
		mu.Unlock()
	})
	defer q.Stop()

	q.Enqueue(func() error { return errors.New("boom") })
	q.Enqueue(func() error { panic("kaboom") })

	done := make(chan struct{})
	q.Enqueue(func() error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stopped processing after a failing job")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 2 {
		t.Fatalf("expected 2 log entries, got %d: %v", len(logged), logged)
	}
	if !strings.Contains(logged[0], "boom") {
		t.Fatalf("error not logged: %q", logged[0])
	}
	if !strings.Contains(logged[1], "kaboom") {
		t.Fatalf("panic not logged: %q", logged[1])
	}
}

func TestQueueStopWaitsForRunningJob(t *testing.T) {
	q := NewQueue(nil)

	started := make(chan struct{})
	finished := make(chan struct{})
	q.Enqueue(func() error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	})

	<-started
	q.Stop()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Stop returned before the running job finished")
	}
}
