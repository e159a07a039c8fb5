package meeting

import (
	"context"
	"time"
)

// Topic is the room name used for every casual chat meeting.
const Topic = "casual chat"

// Info describes a room as confirmed by the provider.
type Info struct {
	ID              string    `json:"id"`
	JoinURL         string    `json:"joinUrl"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Provider hosts temporary meeting rooms. Every call authenticates with the
// tenant's bearer credential.
type Provider interface {
	Create(ctx context.Context, topic string, durationMinutes int, credential string) (Info, error)
	Stop(ctx context.Context, meetingID, credential string) error
	Delete(ctx context.Context, meetingID, credential string) error
}

// Notifier posts text to a chat channel through a webhook.
type Notifier interface {
	Post(ctx context.Context, text, webhookURL, channel string) error
}
