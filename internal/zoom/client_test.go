package zoom

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   string
}

func server(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.RequestURI(), header: r.Header.Clone(), body: string(b)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestStop(t *testing.T) {
	srv, calls := server(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := New(srv.URL, nil)

	if err := c.Stop(context.Background(), "928832", "something-anything"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one call, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.method != http.MethodPut || got.path != "/meetings/928832/status" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	if got.header.Get("Authorization") != "Bearer something-anything" {
		t.Fatalf("unexpected authorization %q", got.header.Get("Authorization"))
	}
	if got.header.Get("User-Agent") != "Zoom-Jwt-Request" || got.header.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected headers %v", got.header)
	}
	if strings.TrimSpace(got.body) != `{"action":"end"}` {
		t.Fatalf("unexpected body %s", got.body)
	}
}

func TestDelete(t *testing.T) {
	srv, calls := server(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := New(srv.URL, nil).Delete(context.Background(), "928832", "tok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := (*calls)[0]; got.method != http.MethodDelete || got.path != "/meetings/928832" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
}

func TestCreate(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	srv, calls := server(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users":
			_, _ = io.WriteString(w, `{"total_records":1,"users":[{"id":"u-1"}]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/users/u-1/meetings":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":85746065432,"join_url":"https://zoom.us/j/85746065432","start_time":"2026-10-19T05:13:00Z","duration":10}`)
		default:
			http.NotFound(w, r)
		}
	})
	c := New(srv.URL, tokyo)
	c.now = func() time.Time { return time.Date(2026, 10, 19, 5, 13, 0, 0, time.UTC) }

	info, err := c.Create(context.Background(), "casual chat", 10, "tok")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.ID != "85746065432" || info.JoinURL != "https://zoom.us/j/85746065432" || info.DurationMinutes != 10 {
		t.Fatalf("unexpected info %+v", info)
	}
	if !info.StartTime.Equal(time.Date(2026, 10, 19, 5, 13, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", info.StartTime)
	}

	if len(*calls) != 2 || (*calls)[0].path != "/users?status=active" {
		t.Fatalf("unexpected calls %+v", *calls)
	}
	var body createRequest
	if err := json.Unmarshal([]byte((*calls)[1].body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Type != 2 || body.Duration != 10 || body.Timezone != "Asia/Tokyo" || body.StartTime != "2026-10-19T14:13:00" {
		t.Fatalf("unexpected create body %+v", body)
	}
	if !body.Settings.JoinBeforeHost || body.Settings.WaitingRoom || body.Settings.Audio != "voip" || body.Settings.AutoRecording != "none" {
		t.Fatalf("unexpected settings %+v", body.Settings)
	}
	if body.Agenda != "Ends automatically after 10 minutes" {
		t.Fatalf("unexpected agenda %q", body.Agenda)
	}
}

func TestCreateRequiresExactlyOneUser(t *testing.T) {
	for _, users := range []string{
		`{"total_records":0,"users":[]}`,
		`{"total_records":2,"users":[{"id":"a"},{"id":"b"}]}`,
	} {
		srv, calls := server(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, users)
		})
		_, err := New(srv.URL, nil).Create(context.Background(), "casual chat", 10, "tok")
		if !errors.Is(err, ErrUnexpectedAccounts) {
			t.Fatalf("expected ErrUnexpectedAccounts, got %v", err)
		}
		if len(*calls) != 1 {
			t.Fatalf("no meeting must be created, got %d calls", len(*calls))
		}
	}
}

func TestNon2xxIsAnError(t *testing.T) {
	srv, _ := server(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":3001,"message":"Meeting does not exist"}`)
	})
	err := New(srv.URL, nil).Delete(context.Background(), "1", "tok")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound || !strings.Contains(se.Body, "3001") {
		t.Fatalf("expected status error, got %v", err)
	}
}
