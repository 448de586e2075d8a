package exec

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Runner is the task-execution seam: callers submit work without knowing
// whether it runs inline or on a shared pool.
type Runner interface {
	Submit(task func()) error
	Close()
}

// Do runs f through the runner and blocks until it finishes.
// If submission fails, f is executed inline so the caller never loses
// work. A panicking task surfaces as an error instead of hanging Do.
func Do(r Runner, f func() error) error {
	done := make(chan error, 1)
	task := func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("task panic: %v", rec)
			}
		}()
		done <- f()
	}
	if err := r.Submit(task); err != nil {
		return f()
	}
	return <-done
}

// SyncRunner executes every task on the calling goroutine.
type SyncRunner struct{}

func (SyncRunner) Submit(task func()) error {
	task()
	return nil
}

func (SyncRunner) Close() {}

// PoolRunner schedules tasks on a bounded ants pool.
type PoolRunner struct {
	pool *ants.Pool
}

func NewPoolRunner(size int) (*PoolRunner, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &PoolRunner{pool: pool}, nil
}

func (r *PoolRunner) Submit(task func()) error {
	return r.pool.Submit(task)
}

func (r *PoolRunner) Close() {
	r.pool.Release()
}
