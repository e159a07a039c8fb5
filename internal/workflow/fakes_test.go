package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/casualchat/internal/calendar"
	"github.com/example/casualchat/internal/domain/meeting"
)

// callLog records the external calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fixedDay struct{ info calendar.DayInfo }

func (f fixedDay) Classify(time.Time) calendar.DayInfo { return f.info }

type fakeRandom struct {
	log   *callLog
	value int
	err   error
}

func (f *fakeRandom) Delay(min, max int) (int, error) {
	f.log.add("random(%d,%d)", min, max)
	return f.value, f.err
}

func (f *fakeRandom) Pick(n int) int {
	f.log.add("pick(%d)", n)
	return 0
}

type fakeMeetings struct {
	log       *callLog
	confirmed int
	createErr error
	stopErr   error
	deleteErr error
}

func (f *fakeMeetings) Create(_ context.Context, topic string, duration int, credential string) (meeting.Info, error) {
	f.log.add("create(%s,%d,%s)", topic, duration, credential)
	if f.createErr != nil {
		return meeting.Info{}, f.createErr
	}
	confirmed := f.confirmed
	if confirmed == 0 {
		confirmed = duration
	}
	return meeting.Info{
		ID:              "928832",
		JoinURL:         "https://zoom.us/j/928832",
		StartTime:       time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC),
		DurationMinutes: confirmed,
	}, nil
}

func (f *fakeMeetings) Stop(_ context.Context, id, credential string) error {
	f.log.add("stop(%s,%s)", id, credential)
	return f.stopErr
}

func (f *fakeMeetings) Delete(_ context.Context, id, credential string) error {
	f.log.add("delete(%s,%s)", id, credential)
	return f.deleteErr
}

type fakeNotifier struct {
	log  *callLog
	err  error
	text string
}

func (f *fakeNotifier) Post(_ context.Context, text, webhookURL, channel string) error {
	f.log.add("notify(%s,%s)", webhookURL, channel)
	f.text = text
	return f.err
}
