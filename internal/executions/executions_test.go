package executions

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/example/casualchat/internal/calendar"
	"github.com/example/casualchat/internal/workflow"
)

// fakeRow feeds fixed column values to scanExecution.
type fakeRow struct{ values []any }

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **string:
			*p, _ = r.values[i].(*string)
		case **time.Time:
			*p, _ = r.values[i].(*time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestScanExecution(t *testing.T) {
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	tenant := workflow.TenantContext{AccountID: "acme", SlackChannel: "#random", ZoomToken: "tok"}
	wait := 900
	record := workflow.Record{
		Tenant:      tenant,
		DayInfo:     &calendar.DayInfo{IsBusinessDay: true, Comment: "Today is weekday 2026-10-19"},
		WaitSeconds: &wait,
	}
	input, _ := json.Marshal(workflow.Input{Tenant: tenant, MeetingDurationMinutes: 12})
	rec, _ := json.Marshal(record)
	lastErr := "boom"

	row := fakeRow{values: []any{
		"exec-1", "acme", input, string(workflow.StateCreateMeeting), string(workflow.StatusRunning), rec,
		now.Add(15 * time.Minute), now.Add(time.Hour), &lastErr, now, now, (*time.Time)(nil),
	}}

	e, err := scanExecution(row)
	if err != nil {
		t.Fatalf("scanExecution: %v", err)
	}
	if e.State != workflow.StateCreateMeeting || e.Status != workflow.StatusRunning {
		t.Fatalf("unexpected state/status: %s/%s", e.State, e.Status)
	}
	if e.Input.MeetingDurationMinutes != 12 || e.Input.Tenant.ZoomToken != "tok" {
		t.Fatalf("input not decoded: %+v", e.Input)
	}
	if e.Record.WaitSeconds == nil || *e.Record.WaitSeconds != 900 || !e.Record.DayInfo.IsBusinessDay {
		t.Fatalf("record not decoded: %+v", e.Record)
	}
	if e.LastError != "boom" || e.FinishedAt != nil {
		t.Fatalf("unexpected lastError/finishedAt: %q %v", e.LastError, e.FinishedAt)
	}
}

func TestScanExecutionBadRecord(t *testing.T) {
	now := time.Now()
	row := fakeRow{values: []any{
		"exec-1", "acme", []byte(`{}`), "classify_day", "running", []byte(`{not json`),
		now, now, (*string)(nil), now, now, (*time.Time)(nil),
	}}
	if _, err := scanExecution(row); err == nil {
		t.Fatalf("expected decode error")
	}
}
