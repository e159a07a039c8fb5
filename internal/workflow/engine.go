package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/example/casualchat/internal/calendar"
	"github.com/example/casualchat/internal/domain/meeting"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Classifier interface {
	Classify(now time.Time) calendar.DayInfo
}

// Randomizer is the only source of non-determinism in a run.
type Randomizer interface {
	Delay(min, max int) (int, error)
	Pick(n int) int
}

type Settings struct {
	WaitMinutesMin         int
	WaitMinutesMax         int
	MeetingDurationMinutes int
	Location               *time.Location
}

// Outcome is the result of one step. Delay is non-zero only for the wait
// states; the caller must not run Next before Delay has elapsed.
type Outcome struct {
	Record Record
	Next   State
	Delay  time.Duration
}

// Engine performs the side effects of each state. It holds no per-execution
// state and can be shared by any number of concurrent executions.
type Engine struct {
	Classifier Classifier
	Random     Randomizer
	Meetings   meeting.Provider
	Notifier   meeting.Notifier
	Settings   Settings
	Log        logrus.FieldLogger
}

// Step runs the effect of st and computes the next state. On error the
// returned Outcome still carries every field recorded before the failure.
func (e *Engine) Step(ctx context.Context, st State, in Input, rec Record, now time.Time) (Outcome, error) {
	var delay time.Duration

	switch st {
	case StateClassifyDay:
		if err := rec.SetDayInfo(e.Classifier.Classify(now)); err != nil {
			return Outcome{Record: rec}, err
		}

	case StateBranch:
		// routing only, see Next

	case StateComputeWait:
		sec, err := e.Random.Delay(e.Settings.WaitMinutesMin*60, e.Settings.WaitMinutesMax*60)
		if err != nil {
			return Outcome{Record: rec}, errors.Wrap(err, "random wait")
		}
		if err := rec.SetWaitSeconds(sec); err != nil {
			return Outcome{Record: rec}, err
		}

	case StateWaitBeforeMeeting:
		if rec.WaitSeconds == nil {
			return Outcome{Record: rec}, errors.New("wait reached before waitSeconds was computed")
		}
		delay = time.Duration(*rec.WaitSeconds) * time.Second

	case StateCreateMeeting:
		if err := e.createMeeting(ctx, in, &rec); err != nil {
			return Outcome{Record: rec}, err
		}

	case StateComputeMeetingWait:
		if rec.Meeting == nil {
			return Outcome{Record: rec}, errors.New("meeting wait reached without a meeting")
		}
		if err := rec.SetMeetingDurationSeconds(rec.Meeting.DurationMinutes * 60); err != nil {
			return Outcome{Record: rec}, err
		}

	case StateWaitMeetingEnd:
		if rec.MeetingDurationSeconds == nil {
			return Outcome{Record: rec}, errors.New("wait reached before meetingDurationSeconds was computed")
		}
		delay = time.Duration(*rec.MeetingDurationSeconds) * time.Second

	case StateStopMeeting:
		if rec.Meeting == nil {
			return Outcome{Record: rec}, errors.New("stop reached without a meeting")
		}
		if err := e.Meetings.Stop(ctx, rec.Meeting.ID, rec.Tenant.ZoomToken); err != nil {
			return Outcome{Record: rec}, errors.Wrapf(err, "stop meeting %s", rec.Meeting.ID)
		}
		if err := rec.SetStopResult(true); err != nil {
			return Outcome{Record: rec}, err
		}

	case StateDeleteMeeting:
		if rec.Meeting == nil {
			return Outcome{Record: rec}, errors.New("delete reached without a meeting")
		}
		if err := e.Meetings.Delete(ctx, rec.Meeting.ID, rec.Tenant.ZoomToken); err != nil {
			return Outcome{Record: rec}, errors.Wrapf(err, "delete meeting %s", rec.Meeting.ID)
		}
		if err := rec.SetDeleteResult(true); err != nil {
			return Outcome{Record: rec}, err
		}
	}

	next, err := Next(st, rec)
	if err != nil {
		return Outcome{Record: rec}, err
	}
	return Outcome{Record: rec, Next: next, Delay: delay}, nil
}

// ErrIncompleteTenant is returned before any room is created when the tenant
// cannot be announced to or cannot authenticate with the provider.
var ErrIncompleteTenant = errors.New("tenant is missing a required setting")

func (e *Engine) createMeeting(ctx context.Context, in Input, rec *Record) error {
	if err := checkTenant(rec.Tenant); err != nil {
		return err
	}

	duration := in.MeetingDurationMinutes
	if duration <= 0 {
		duration = e.Settings.MeetingDurationMinutes
	}

	info, err := e.Meetings.Create(ctx, meeting.Topic, duration, rec.Tenant.ZoomToken)
	if err != nil {
		return errors.Wrap(err, "create meeting")
	}
	if err := rec.SetMeeting(info); err != nil {
		return err
	}

	msg := meeting.Messages[e.Random.Pick(len(meeting.Messages))]
	text := meeting.Announcement(info, e.location(), msg)
	if err := e.Notifier.Post(ctx, text, rec.Tenant.SlackWebhookURL, rec.Tenant.SlackChannel); err != nil {
		e.teardown(ctx, rec)
		return errors.Wrapf(err, "announce meeting %s", info.ID)
	}
	return nil
}

func checkTenant(t TenantContext) error {
	var missing []string
	if t.SlackWebhookURL == "" {
		missing = append(missing, "slackWebHookUrl")
	}
	if t.SlackChannel == "" {
		missing = append(missing, "slackChannel")
	}
	if t.ZoomToken == "" {
		missing = append(missing, "zoomToken")
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrIncompleteTenant, "%s empty", strings.Join(missing, ", "))
	}
	return nil
}

// teardown ends and deletes a room nobody was told about. Failures are only
// logged; a room that could not be deleted stays visible as orphaned.
func (e *Engine) teardown(ctx context.Context, rec *Record) {
	id := rec.Meeting.ID
	log := e.logger().WithFields(logrus.Fields{"account_id": rec.Tenant.AccountID, "meeting_id": id})

	stopErr := e.Meetings.Stop(ctx, id, rec.Tenant.ZoomToken)
	if stopErr != nil {
		log.WithError(stopErr).Warn("end unannounced meeting failed")
	}
	_ = rec.SetStopResult(stopErr == nil)

	if err := e.Meetings.Delete(ctx, id, rec.Tenant.ZoomToken); err != nil {
		log.WithError(err).Warn("delete unannounced meeting failed")
		return
	}
	_ = rec.SetDeleteResult(true)
}

func (e *Engine) location() *time.Location {
	if e.Settings.Location == nil {
		return time.UTC
	}
	return e.Settings.Location
}

// Advance applies one step to a running execution and returns the updated
// copy. Failures end the execution; a failure at or past the deadline is
// reported as a timeout.
func (e *Engine) Advance(ctx context.Context, exec Execution, now time.Time) Execution {
	if exec.Status != StatusRunning {
		return exec
	}
	log := e.logger().WithFields(logrus.Fields{
		"execution_id": exec.ID,
		"account_id":   exec.AccountID,
		"state":        exec.State,
	})

	out, err := e.Step(ctx, exec.State, exec.Input, exec.Record, now)
	exec.Record = out.Record
	exec.UpdatedAt = now

	if err != nil {
		exec.Status = StatusFailed
		if errors.Is(err, context.DeadlineExceeded) || (!exec.Deadline.IsZero() && !now.Before(exec.Deadline)) {
			exec.Status = StatusTimedOut
		}
		exec.LastError = err.Error()
		exec.FinishedAt = &now
		entry := log.WithError(err).WithField("status", exec.Status)
		if id, ok := exec.OrphanedMeeting(); ok {
			entry = entry.WithField("meeting_id", id)
		}
		entry.Error("execution failed")
		return exec
	}

	exec.State = out.Next
	exec.ResumeAt = now.Add(out.Delay)
	if out.Delay > 0 {
		log.WithField("resume_at", exec.ResumeAt).Info("execution suspended")
	} else {
		log.WithField("next", out.Next).Debug("step done")
	}

	if out.Next == StateEnd {
		if err := exec.Record.CheckInvariant(); err != nil {
			exec.Status = StatusFailed
			exec.LastError = err.Error()
			exec.FinishedAt = &now
			log.WithError(err).Error("execution finished with an inconsistent record")
			return exec
		}
		exec.Status = StatusSucceeded
		exec.FinishedAt = &now
		log.WithField("day", exec.Record.DayInfo.Comment).Info("execution succeeded")
	}
	return exec
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}
