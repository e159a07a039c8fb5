// Package trigger fires the fan-out on a cron schedule.
package trigger

import (
	"context"
	"time"

	"github.com/example/casualchat/internal/dispatch"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Dispatcher interface {
	Dispatch(ctx context.Context) ([]dispatch.Handle, error)
}

type Trigger struct {
	cron    *cron.Cron
	d       Dispatcher
	timeout time.Duration
	log     logrus.FieldLogger
}

// New parses spec (standard five-field cron) in loc. Each firing gets
// timeout to read the registry and start the executions.
func New(spec string, loc *time.Location, d Dispatcher, timeout time.Duration, log logrus.FieldLogger) (*Trigger, error) {
	if loc == nil {
		loc = time.UTC
	}
	t := &Trigger{
		cron:    cron.New(cron.WithLocation(loc)),
		d:       d,
		timeout: timeout,
		log:     log,
	}
	if _, err := t.cron.AddFunc(spec, t.Fire); err != nil {
		return nil, errors.Wrapf(err, "invalid trigger schedule %q", spec)
	}
	return t, nil
}

// Fire runs one dispatch. Errors are logged, never returned: a bad firing
// must not stop the schedule.
func (t *Trigger) Fire() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	handles, err := t.d.Dispatch(ctx)
	if err != nil {
		t.log.WithError(err).Error("scheduled dispatch failed")
		return
	}
	for _, h := range handles {
		if h.Err != nil {
			t.log.WithError(h.Err).WithField("account_id", h.AccountID).Warn("tenant not started")
		}
	}
}

// Run starts the schedule and blocks until ctx is done. A firing in
// progress is allowed to finish.
func (t *Trigger) Run(ctx context.Context) error {
	t.cron.Start()
	t.log.WithField("next", t.Next(time.Now())).Info("trigger scheduled")
	<-ctx.Done()
	<-t.cron.Stop().Done()
	return ctx.Err()
}

// Next reports the next firing time after from.
func (t *Trigger) Next(from time.Time) time.Time {
	entries := t.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(from)
}
