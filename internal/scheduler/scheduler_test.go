package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/casualchat/internal/calendar"
	"github.com/example/casualchat/internal/domain/meeting"
	"github.com/example/casualchat/internal/executions/executionstest"
	"github.com/example/casualchat/internal/logging"
	"github.com/example/casualchat/internal/workflow"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type day bool

func (d day) Classify(time.Time) calendar.DayInfo {
	return calendar.DayInfo{IsBusinessDay: bool(d), Comment: "fixed"}
}

type fixedRandom int

func (f fixedRandom) Delay(int, int) (int, error) { return int(f), nil }
func (f fixedRandom) Pick(int) int                { return 0 }

type provider struct {
	mu      sync.Mutex
	created int
	stopped int
	deleted int
}

func (p *provider) Create(_ context.Context, _ string, duration int, _ string) (meeting.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return meeting.Info{ID: "m-1", JoinURL: "https://zoom.us/j/1", DurationMinutes: duration}, nil
}

func (p *provider) Stop(context.Context, string, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	return nil
}

func (p *provider) Delete(context.Context, string, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted++
	return nil
}

type notifier struct{}

func (notifier) Post(context.Context, string, string, string) error { return nil }

var t0 = time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)

func newRunner(store *executionstest.Memory, clk *clock, p *provider, business bool) *Runner {
	engine := &workflow.Engine{
		Classifier: day(business),
		Random:     fixedRandom(900),
		Meetings:   p,
		Notifier:   notifier{},
		Settings:   workflow.Settings{WaitMinutesMin: 10, WaitMinutesMax: 50, MeetingDurationMinutes: 10, Location: time.UTC},
		Log:        logging.Discard(),
	}
	return &Runner{
		Store:    store,
		Engine:   engine,
		Interval: time.Second,
		Lease:    time.Minute,
		Now:      clk.Now,
		Log:      logging.Discard(),
	}
}

func seed(t *testing.T, store *executionstest.Memory, id string, timeout time.Duration) {
	t.Helper()
	in := workflow.Input{Tenant: workflow.TenantContext{
		AccountID:       id,
		SlackChannel:    "#random",
		SlackWebhookURL: "https://hooks.example.com/" + id,
		ZoomToken:       "tok",
	}}
	if err := store.Create(context.Background(), workflow.NewExecution(id, in, t0, timeout)); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func tick(r *Runner) {
	r.Tick(context.Background())
	r.Wait()
}

func get(t *testing.T, store *executionstest.Memory, id string) workflow.Execution {
	t.Helper()
	e, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return e
}

func TestRunnerSuspendsAndResumes(t *testing.T) {
	store := executionstest.NewMemory()
	clk := &clock{now: t0}
	p := &provider{}
	seed(t, store, "acme", time.Hour)

	tick(newRunner(store, clk, p, true))
	e := get(t, store, "acme")
	if e.State != workflow.StateCreateMeeting || !e.ResumeAt.Equal(t0.Add(900*time.Second)) {
		t.Fatalf("expected suspension before create, got state=%s resume=%s", e.State, e.ResumeAt)
	}
	if store.Leased("acme", clk.Now()) {
		t.Fatalf("suspended execution should not hold a lease")
	}

	// Not yet due: nothing happens.
	clk.Set(t0.Add(899 * time.Second))
	tick(newRunner(store, clk, p, true))
	if p.created != 0 {
		t.Fatalf("meeting created before the wait elapsed")
	}

	// A fresh runner, as after a process restart, resumes at the stored state.
	clk.Set(t0.Add(900 * time.Second))
	tick(newRunner(store, clk, p, true))
	e = get(t, store, "acme")
	if e.State != workflow.StateStopMeeting || p.created != 1 || p.stopped != 0 {
		t.Fatalf("expected suspension during the meeting, got state=%s created=%d stopped=%d", e.State, p.created, p.stopped)
	}
	if *e.Record.WaitSeconds != 900 {
		t.Fatalf("record lost across resume: %+v", e.Record)
	}

	clk.Set(t0.Add(1500 * time.Second))
	tick(newRunner(store, clk, p, true))
	e = get(t, store, "acme")
	if e.Status != workflow.StatusSucceeded || e.State != workflow.StateEnd {
		t.Fatalf("expected success, got %s/%s (%s)", e.Status, e.State, e.LastError)
	}
	if p.created != 1 || p.stopped != 1 || p.deleted != 1 {
		t.Fatalf("unexpected provider calls: %+v", p)
	}
}

func TestRunnerNonBusinessDayFinishesInOneTick(t *testing.T) {
	store := executionstest.NewMemory()
	clk := &clock{now: t0}
	p := &provider{}
	seed(t, store, "acme", time.Hour)

	tick(newRunner(store, clk, p, false))

	e := get(t, store, "acme")
	if e.Status != workflow.StatusSucceeded {
		t.Fatalf("expected success, got %s", e.Status)
	}
	if p.created+p.stopped+p.deleted != 0 {
		t.Fatalf("provider must not be called: %+v", p)
	}
}

func TestRunnerTenantsAreIndependent(t *testing.T) {
	store := executionstest.NewMemory()
	clk := &clock{now: t0}
	p := &provider{}
	for _, id := range []string{"a", "b", "c"} {
		seed(t, store, id, time.Hour)
	}

	tick(newRunner(store, clk, p, true))

	for _, id := range []string{"a", "b", "c"} {
		if e := get(t, store, id); e.State != workflow.StateCreateMeeting {
			t.Fatalf("%s: expected create_meeting, got %s", id, e.State)
		}
	}
}

func TestRunnerExpiresOverdueExecutions(t *testing.T) {
	store := executionstest.NewMemory()
	clk := &clock{now: t0}
	p := &provider{}
	seed(t, store, "acme", 20*time.Minute)

	tick(newRunner(store, clk, p, true))
	clk.Set(t0.Add(900 * time.Second))
	tick(newRunner(store, clk, p, true))
	if e := get(t, store, "acme"); e.State != workflow.StateStopMeeting {
		t.Fatalf("expected to be in the meeting, got %s", e.State)
	}

	// The 20 minute ceiling passes while the meeting wait is pending.
	clk.Set(t0.Add(21 * time.Minute))
	tick(newRunner(store, clk, p, true))

	e := get(t, store, "acme")
	if e.Status != workflow.StatusTimedOut {
		t.Fatalf("expected timed_out, got %s", e.Status)
	}
	if id, ok := e.OrphanedMeeting(); !ok || id != "m-1" {
		t.Fatalf("expected orphaned meeting m-1, got %q %v", id, ok)
	}
	if p.stopped != 0 {
		t.Fatalf("no cleanup is attempted after a timeout")
	}
}

func TestRunnerStopsOnShutdown(t *testing.T) {
	store := executionstest.NewMemory()
	clk := &clock{now: t0}
	p := &provider{}
	seed(t, store, "acme", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(store, clk, p, true)
	r.Tick(ctx)
	r.Wait()

	e := get(t, store, "acme")
	if e.State != workflow.StateClassifyDay || e.Status != workflow.StatusRunning {
		t.Fatalf("expected untouched execution, got %s/%s", e.State, e.Status)
	}
}
