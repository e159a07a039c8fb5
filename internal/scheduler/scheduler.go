package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/example/casualchat/internal/workflow"
	"github.com/sirupsen/logrus"
)

// Store is the durable side of the runner: executions are claimed when
// their resume time passes and written back after every step.
type Store interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]workflow.Execution, error)
	Save(ctx context.Context, e workflow.Execution) error
	ExpireOverdue(ctx context.Context, now time.Time) ([]workflow.Execution, error)
}

type Advancer interface {
	Advance(ctx context.Context, exec workflow.Execution, now time.Time) workflow.Execution
}

// Runner polls for due executions and advances each one until it suspends
// or finishes.
type Runner struct {
	Store    Store
	Engine   Advancer
	Interval time.Duration
	Lease    time.Duration
	Batch    int
	Now      func() time.Time
	Log      logrus.FieldLogger

	wg sync.WaitGroup
}

func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// kick immediately
	r.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick expires overdue executions, then starts a goroutine for every
// execution that is due.
func (r *Runner) Tick(ctx context.Context) {
	now := r.now()

	expired, err := r.Store.ExpireOverdue(ctx, now)
	if err != nil {
		r.log().WithError(err).Error("expire overdue executions failed")
	}
	for _, e := range expired {
		entry := r.log().WithFields(logrus.Fields{
			"execution_id": e.ID,
			"account_id":   e.AccountID,
			"state":        e.State,
		})
		if id, ok := e.OrphanedMeeting(); ok {
			entry.WithField("meeting_id", id).Warn("execution timed out; meeting room may be left behind on the provider")
			continue
		}
		entry.Warn("execution timed out")
	}

	due, err := r.Store.ClaimDue(ctx, now, r.batch(), r.lease())
	if err != nil {
		r.log().WithError(err).Error("claim due executions failed")
		return
	}

	for _, e := range due {
		e := e
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.drive(ctx, e)
		}()
	}
}

// Wait blocks until every execution started by Tick has suspended or finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) drive(ctx context.Context, exec workflow.Execution) {
	stepCtx, cancel := context.WithTimeout(ctx, exec.Deadline.Sub(r.now()))
	defer cancel()
	saveCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			// shutting down; the lease runs out and another runner resumes
			return
		}
		now := r.now()
		next := r.Engine.Advance(stepCtx, exec, now)
		if ctx.Err() != nil && next.Status.Terminal() && next.Status != workflow.StatusSucceeded {
			// the step was interrupted by shutdown, not by the provider
			return
		}
		if err := r.Store.Save(saveCtx, next); err != nil {
			r.log().WithError(err).WithField("execution_id", exec.ID).Error("save execution failed")
			return
		}
		exec = next
		if !exec.Due(now) {
			return
		}
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) batch() int {
	if r.Batch <= 0 {
		return 25
	}
	return r.Batch
}

func (r *Runner) lease() time.Duration {
	if r.Lease <= 0 {
		return time.Minute
	}
	return r.Lease
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}
