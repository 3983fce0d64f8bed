package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/encore/internal/worker"
	"github.com/google/go-cmp/cmp"
)

func TestPoolRunsEveryJob(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	handler := worker.JobHandlerFunc(func(_ context.Context, job worker.Job) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, job.ID)
		return nil
	})

	pool := worker.NewPool(handler, worker.PoolOptions{Workers: 1, Backlog: 3})
	for _, id := range []string{"a", "b", "c"} {
		if err := pool.Submit(worker.Job{ID: id}); err != nil {
			t.Fatalf("Submit(%s) error: %v", id, err)
		}
	}
	pool.Start(t.Context())
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, handled); diff != "" {
		t.Errorf("handled jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestPoolRejectsWhenBacklogFull(t *testing.T) {
	release := make(chan struct{})
	running := make(chan struct{}, 1)
	handler := worker.JobHandlerFunc(func(ctx context.Context, _ worker.Job) error {
		running <- struct{}{}
		<-release
		return nil
	})

	pool := worker.NewPool(handler, worker.PoolOptions{Workers: 1, Backlog: 1})
	pool.Start(t.Context())
	t.Cleanup(func() {
		close(release)
		_ = pool.Stop()
	})

	if err := pool.Submit(worker.Job{ID: "busy"}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	<-running

	if err := pool.Submit(worker.Job{ID: "queued"}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if err := pool.Submit(worker.Job{ID: "rejected"}); !errors.Is(err, worker.ErrBacklogFull) {
		t.Errorf("Submit() error = %v, want ErrBacklogFull", err)
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	pool := worker.NewPool(worker.JobHandlerFunc(func(context.Context, worker.Job) error { return nil }), worker.PoolOptions{})
	pool.Start(t.Context())
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := pool.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
	if err := pool.Submit(worker.Job{ID: "late"}); !errors.Is(err, worker.ErrStopped) {
		t.Errorf("Submit() error = %v, want ErrStopped", err)
	}
}

func TestPoolJobTimeoutAndFailures(t *testing.T) {
	var timedOut, calls atomic.Int32
	handler := worker.JobHandlerFunc(func(ctx context.Context, job worker.Job) error {
		calls.Add(1)
		switch job.ID {
		case "slow":
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				timedOut.Add(1)
			}
			return ctx.Err()
		case "panics":
			panic("boom")
		default:
			return errors.New("download failed")
		}
	})

	pool := worker.NewPool(handler, worker.PoolOptions{Workers: 2, Backlog: 3, JobTimeout: 20 * time.Millisecond})
	pool.Start(t.Context())
	for _, id := range []string{"slow", "panics", "fails"} {
		if err := pool.Submit(worker.Job{ID: id}); err != nil {
			t.Fatalf("Submit(%s) error: %v", id, err)
		}
	}
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if calls.Load() != 3 {
		t.Errorf("expected 3 handled jobs, got %d", calls.Load())
	}
	if timedOut.Load() != 1 {
		t.Errorf("expected the slow job to hit its deadline")
	}
}
