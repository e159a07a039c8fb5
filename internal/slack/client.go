// Package slack posts messages through incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Client struct {
	hc *http.Client
}

func New() *Client {
	return &Client{hc: &http.Client{Timeout: 10 * time.Second}}
}

type message struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	LinkNames int    `json:"link_names"`
}

// Post sends text to channel. link_names is set so @here notifies.
func (c *Client) Post(ctx context.Context, text, webhookURL, channel string) error {
	if webhookURL == "" {
		return errors.New("slack: no webhook url configured")
	}
	b, err := json.Marshal(message{Channel: channel, Text: text, LinkNames: 1})
	if err != nil {
		return errors.Wrap(err, "slack: encode message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "slack: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "slack: post")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("slack: post failed (status=%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
