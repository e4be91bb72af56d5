package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunOnce(t *testing.T) {
	calls := 0
	r := New(time.Hour, func(ctx context.Context) error {
		calls++
		return nil
	}, nil)

	if !r.RunOnce(context.Background()) {
		t.Fatal("RunOnce skipped")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRunOnceReentrancyGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	r := New(time.Hour, func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.RunOnce(context.Background())
	}()

	<-entered
	// First cycle is in flight: a second invocation must be skipped.
	if r.RunOnce(context.Background()) {
		t.Error("overlapping cycle was not skipped")
	}
	close(release)
	wg.Wait()

	if !r.RunOnce(context.Background()) {
		t.Error("cycle after completion was skipped")
	}
}

func TestResultCallback(t *testing.T) {
	wantErr := errors.New("cycle failed")
	var got error
	r := New(time.Hour, func(ctx context.Context) error {
		return wantErr
	}, func(err error) { got = err })

	r.RunOnce(context.Background())
	if !errors.Is(got, wantErr) {
		t.Errorf("callback error = %v, want %v", got, wantErr)
	}
}

func TestStartStop(t *testing.T) {
	ticks := make(chan struct{}, 100)
	r := New(10*time.Millisecond, func(ctx context.Context) error {
		ticks <- struct{}{}
		return nil
	}, nil)

	r.Start(context.Background())

	// Initial immediate cycle plus at least one scheduled cycle.
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for cycle")
		}
	}

	r.Stop()
	r.Stop() // idempotent
}

func TestStopWithoutStart(t *testing.T) {
	r := New(time.Hour, func(ctx context.Context) error { return nil }, nil)
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop without Start blocked")
	}
}
