// Package events carries domain events from services to realtime clients and
// message brokers. Events are published only after the change they describe
// has been committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-retail-pos/pkg/logger"

	"go.uber.org/zap"
)

const (
	TypeCheckoutCompleted = "checkout_completed"
	TypeStockUpdate       = "stock_update"
	TypeUserStatus        = "user_status_update"
)

type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key,omitempty"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func New(eventType, key string, payload interface{}) Event {
	return Event{Type: eventType, Key: key, Payload: payload, OccurredAt: time.Now().UTC()}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Multi delivers every event to each publisher. A failing publisher does not
// stop the others; all failures are logged and joined.
type Multi struct {
	publishers []Publisher
	log        logger.ZapLogger
}

func NewMulti(log logger.ZapLogger, publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers, log: log}
}

func (m *Multi) Add(p Publisher) {
	m.publishers = append(m.publishers, p)
}

func (m *Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			m.log.Warn("event publish failed",
				zap.String("type", event.Type),
				zap.String("key", event.Key),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
