package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const envelopeVersion = 1

// Envelope is the JSON body of every published message.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

// EventPublisher wraps payloads in an Envelope and waits for the server ack.
type EventPublisher struct {
	pub publisher
	now func() time.Time
}

func NewEventPublisher(pub publisher) *EventPublisher {
	return &EventPublisher{pub: pub, now: time.Now}
}

// Publish sends payload as eventType and blocks until the message is acked.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	if p == nil || p.pub == nil {
		return errors.New("pubsub publisher not initialized")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: p.now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":   env.EventID,
			"event_type": eventType,
			"created_at": env.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	res := p.pub.Publish(ctx, msg)
	if res == nil {
		return errors.New("publish result is nil")
	}
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
