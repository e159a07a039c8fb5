package workflow

import (
	"github.com/example/casualchat/internal/calendar"
	"github.com/example/casualchat/internal/domain/meeting"
	"github.com/pkg/errors"
)

// TenantContext is the per-execution input sourced from the account registry.
type TenantContext struct {
	AccountID       string `json:"accountId"`
	SlackChannel    string `json:"slackChannel"`
	SlackWebhookURL string `json:"slackWebHookUrl"`
	ZoomToken       string `json:"zoomToken"`
}

// Redacted hides the credentials for display.
func (t TenantContext) Redacted() TenantContext {
	if t.ZoomToken != "" {
		t.ZoomToken = "REDACTED"
	}
	if t.SlackWebhookURL != "" {
		t.SlackWebhookURL = "REDACTED"
	}
	return t
}

// Input starts an execution. A zero MeetingDurationMinutes means the
// configured default.
type Input struct {
	Tenant                 TenantContext `json:"tenant"`
	MeetingDurationMinutes int           `json:"meetingDurationMinutes,omitempty"`
}

var ErrFieldAlreadySet = errors.New("record field already set")

// Record accumulates step results for one execution. Fields are written once.
type Record struct {
	Tenant                 TenantContext     `json:"tenant"`
	DayInfo                *calendar.DayInfo `json:"dayInfo,omitempty"`
	WaitSeconds            *int              `json:"waitSeconds,omitempty"`
	Meeting                *meeting.Info     `json:"meeting,omitempty"`
	MeetingDurationSeconds *int              `json:"meetingDurationSeconds,omitempty"`
	StopResult             *bool             `json:"stopResult,omitempty"`
	DeleteResult           *bool             `json:"deleteResult,omitempty"`
}

func (r *Record) SetDayInfo(d calendar.DayInfo) error {
	if r.DayInfo != nil {
		return errors.Wrap(ErrFieldAlreadySet, "dayInfo")
	}
	r.DayInfo = &d
	return nil
}

func (r *Record) SetWaitSeconds(n int) error {
	if r.WaitSeconds != nil {
		return errors.Wrap(ErrFieldAlreadySet, "waitSeconds")
	}
	r.WaitSeconds = &n
	return nil
}

func (r *Record) SetMeeting(m meeting.Info) error {
	if r.Meeting != nil {
		return errors.Wrap(ErrFieldAlreadySet, "meeting")
	}
	r.Meeting = &m
	return nil
}

func (r *Record) SetMeetingDurationSeconds(n int) error {
	if r.MeetingDurationSeconds != nil {
		return errors.Wrap(ErrFieldAlreadySet, "meetingDurationSeconds")
	}
	r.MeetingDurationSeconds = &n
	return nil
}

func (r *Record) SetStopResult(ok bool) error {
	if r.StopResult != nil {
		return errors.Wrap(ErrFieldAlreadySet, "stopResult")
	}
	r.StopResult = &ok
	return nil
}

func (r *Record) SetDeleteResult(ok bool) error {
	if r.DeleteResult != nil {
		return errors.Wrap(ErrFieldAlreadySet, "deleteResult")
	}
	r.DeleteResult = &ok
	return nil
}

// CheckInvariant verifies a finished record: the wait, meeting, stop and
// delete fields are present exactly when the day was a business day.
func (r Record) CheckInvariant() error {
	if r.DayInfo == nil {
		return errors.New("record has no dayInfo")
	}
	want := r.DayInfo.IsBusinessDay
	fields := []struct {
		name string
		set  bool
	}{
		{"waitSeconds", r.WaitSeconds != nil},
		{"meeting", r.Meeting != nil},
		{"meetingDurationSeconds", r.MeetingDurationSeconds != nil},
		{"stopResult", r.StopResult != nil},
		{"deleteResult", r.DeleteResult != nil},
	}
	for _, f := range fields {
		if f.set != want {
			return errors.Errorf("record field %s set=%v but isBusinessDay=%v", f.name, f.set, want)
		}
	}
	return nil
}

// Redacted returns a copy safe to show in listings.
func (r Record) Redacted() Record {
	r.Tenant = r.Tenant.Redacted()
	return r
}
