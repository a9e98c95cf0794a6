package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Message is the JSON body written for every lifecycle event.
type Message struct {
	Type              string    `json:"type"`
	ListingID         string    `json:"listingId"`
	RequestID         string    `json:"requestId,omitempty"`
	RequesterEmail    string    `json:"requesterEmail,omitempty"`
	QuantityRequested int       `json:"quantityRequested,omitempty"`
	Remaining         int       `json:"remaining"`
	Cascaded          int       `json:"cascaded,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// Publisher turns domain events into keyed Kafka messages.
type Publisher struct {
	producer Producer
}

func NewPublisher(p Producer) *Publisher {
	return &Publisher{producer: p}
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(Message{
		Type:              string(e.Type),
		ListingID:         e.ListingID,
		RequestID:         e.RequestID,
		RequesterEmail:    e.RequesterEmail,
		QuantityRequested: e.QuantityRequested,
		Remaining:         e.Remaining,
		Cascaded:          e.Cascaded,
		OccurredAt:        e.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(e.ListingID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", e.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
