package cmd

import (
	"context"
	"time"

	"github.com/example/casualchat/internal/calendar"
	"github.com/example/casualchat/internal/config"
	"github.com/example/casualchat/internal/db"
	"github.com/example/casualchat/internal/dispatch"
	"github.com/example/casualchat/internal/executions"
	"github.com/example/casualchat/internal/jitter"
	"github.com/example/casualchat/internal/logging"
	"github.com/example/casualchat/internal/migrate"
	"github.com/example/casualchat/internal/registry"
	"github.com/example/casualchat/internal/slack"
	"github.com/example/casualchat/internal/workflow"
	"github.com/example/casualchat/internal/zoom"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// app holds what every database-backed command needs.
type app struct {
	cfg  config.Config
	log  *logrus.Logger
	db   *db.DB
	repo *executions.Repo
}

func openApp(ctx context.Context, migrateUp bool) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "db ping")
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return &app{cfg: cfg, log: log, db: d, repo: executions.NewRepo(d)}, nil
}

func (a *app) Close() { a.db.Close() }

func (a *app) registry() registry.Dir {
	return registry.Dir{Path: a.cfg.RegistryDir, Key: a.cfg.RegistryKey}
}

func (a *app) dispatcher() *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Registry: a.registry(),
		Store:    a.repo,
		Prefix:   a.cfg.RegistryPrefix,
		Timeout:  a.cfg.ExecutionTimeout,
		Log:      a.log,
	}
}

func (a *app) engine() (*workflow.Engine, error) {
	holidays := calendar.Layered{calendar.Japan()}
	if a.cfg.HolidaysFile != "" {
		extra, err := calendar.Load(a.cfg.HolidaysFile)
		if err != nil {
			return nil, err
		}
		a.log.WithField("holidays", extra.Len()).Debug("holiday file loaded")
		holidays = calendar.Layered{extra, calendar.Japan()}
	}
	if year := time.Now().In(a.cfg.Location).Year(); !calendar.Covers(holidays, year) {
		a.log.WithField("year", year).Warn("holiday calendar does not cover the current year")
	}

	return &workflow.Engine{
		Classifier: calendar.NewClassifierIn(a.cfg.Location, holidays).WithLogger(a.log),
		Random:     jitter.New(),
		Meetings:   zoom.New(a.cfg.ZoomBaseURL, a.cfg.Location),
		Notifier:   slack.New(),
		Settings: workflow.Settings{
			WaitMinutesMin:         a.cfg.WaitMinutesMin,
			WaitMinutesMax:         a.cfg.WaitMinutesMax,
			MeetingDurationMinutes: a.cfg.MeetingDurationMinutes,
			Location:               a.cfg.Location,
		},
		Log: a.log,
	}, nil
}

// dispatchTimeout bounds one fan-out: a registry read plus one insert per tenant.
const dispatchTimeout = 30 * time.Second
