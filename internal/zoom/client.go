// Package zoom implements meeting.Provider against the Zoom REST API.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/casualchat/internal/domain/meeting"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://api.zoom.us/v2"
	userAgent      = "Zoom-Jwt-Request"
)

// ErrUnexpectedAccounts is returned when the credential does not resolve to
// exactly one active user.
var ErrUnexpectedAccounts = errors.New("expected exactly one active zoom user")

type Client struct {
	hc       *http.Client
	baseURL  string
	location *time.Location
	now      func() time.Time
}

// New returns a client for baseURL. Meeting start times are sent in loc.
func New(baseURL string, loc *time.Location) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		hc:       &http.Client{Timeout: 10 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		location: loc,
		now:      time.Now,
	}
}

type user struct {
	ID string `json:"id"`
}

type usersResponse struct {
	TotalRecords int    `json:"total_records"`
	Users        []user `json:"users"`
}

type meetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	CNMeeting        bool   `json:"cn_meeting"`
	INMeeting        bool   `json:"in_meeting"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	Watermark        bool   `json:"watermark"`
	UsePMI           bool   `json:"use_pmi"`
	ApprovalType     int    `json:"approval_type"`
	Audio            string `json:"audio"`
	AutoRecording    string `json:"auto_recording"`
	EnforceLogin     bool   `json:"enforce_login"`
	WaitingRoom      bool   `json:"waiting_room"`
}

type createRequest struct {
	Topic     string          `json:"topic"`
	Agenda    string          `json:"agenda"`
	Type      int             `json:"type"`
	Timezone  string          `json:"timezone"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Settings  meetingSettings `json:"settings"`
}

type createResponse struct {
	ID        json.Number `json:"id"`
	JoinURL   string      `json:"join_url"`
	StartTime string      `json:"start_time"`
	Duration  int         `json:"duration"`
}

// Create schedules a meeting owned by the credential's only active user.
func (c *Client) Create(ctx context.Context, topic string, durationMinutes int, credential string) (meeting.Info, error) {
	u, err := c.activeUser(ctx, credential)
	if err != nil {
		return meeting.Info{}, err
	}

	now := c.now().In(c.location)
	req := createRequest{
		Topic:     topic,
		Agenda:    fmt.Sprintf("Ends automatically after %d minutes", durationMinutes),
		Type:      2,
		Timezone:  c.location.String(),
		StartTime: now.Format("2006-01-02T15:04:05"),
		Duration:  durationMinutes,
		Settings: meetingSettings{
			ParticipantVideo: true,
			JoinBeforeHost:   true,
			ApprovalType:     2,
			Audio:            "voip",
			AutoRecording:    "none",
		},
	}

	var res createResponse
	if err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(u.ID)+"/meetings", credential, req, &res); err != nil {
		return meeting.Info{}, errors.Wrap(err, "create meeting")
	}
	if res.ID.String() == "" {
		return meeting.Info{}, errors.New("create meeting: response has no meeting id")
	}

	info := meeting.Info{
		ID:              res.ID.String(),
		JoinURL:         res.JoinURL,
		StartTime:       now,
		DurationMinutes: res.Duration,
	}
	if t, err := time.Parse(time.RFC3339, res.StartTime); err == nil {
		info.StartTime = t
	}
	if info.DurationMinutes <= 0 {
		info.DurationMinutes = durationMinutes
	}
	return info, nil
}

// Stop ends a running meeting. Ending a meeting that never started is
// accepted by the API.
func (c *Client) Stop(ctx context.Context, meetingID, credential string) error {
	body := map[string]string{"action": "end"}
	return errors.Wrap(c.do(ctx, http.MethodPut, "/meetings/"+url.PathEscape(meetingID)+"/status", credential, body, nil), "end meeting")
}

func (c *Client) Delete(ctx context.Context, meetingID, credential string) error {
	return errors.Wrap(c.do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(meetingID), credential, nil, nil), "delete meeting")
}

func (c *Client) activeUser(ctx context.Context, credential string) (user, error) {
	var res usersResponse
	if err := c.do(ctx, http.MethodGet, "/users?status=active", credential, nil, &res); err != nil {
		return user{}, errors.Wrap(err, "list users")
	}
	if res.TotalRecords != 1 || len(res.Users) != 1 {
		return user{}, errors.Wrapf(ErrUnexpectedAccounts, "got %d", res.TotalRecords)
	}
	return res.Users[0], nil
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zoom %s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path, credential string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("content-type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "zoom %s %s", method, path)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
