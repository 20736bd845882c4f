package events

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"stablecoin-swap/domain"
)

// Event kinds
const (
	KindConversionCompleted = "conversion.completed"
	KindBatchCompleted      = "batch.completed"
)

// Event envelope of a notification emitted after a call commits.
// Topics are the indexed identifiers of the event.
type Event struct {
	ID     uuid.UUID         `json:"id"`
	Kind   string            `json:"kind"`
	Time   time.Time         `json:"time"`
	Topics []domain.ID       `json:"topics"`
	Data   map[string]string `json:"data"`
}

// Publisher delivers events. Implementations must be concurrency-safe.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewConversionEvent wraps a completed single conversion
func NewConversionEvent(c domain.ConversionCompleted) Event {
	return Event{
		ID:     uuid.New(),
		Kind:   KindConversionCompleted,
		Time:   time.Now().UTC(),
		Topics: []domain.ID{c.From, c.To},
		Data: map[string]string{
			"from_amount": c.FromAmount.Dec(),
			"to_amount":   c.ToAmount.Dec(),
		},
	}
}

// NewBatchEvent wraps a completed batch conversion
func NewBatchEvent(b domain.BatchCompleted) Event {
	return Event{
		ID:     uuid.New(),
		Kind:   KindBatchCompleted,
		Time:   time.Now().UTC(),
		Topics: []domain.ID{b.Caller},
		Data: map[string]string{
			"count": strconv.Itoa(b.Count),
			"total": b.Total.Dec(),
		},
	}
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// multi fans an event out to several publishers
type multi []Publisher

// Multi returns a Publisher that publishes to all of ps, attempting every one
// even when some fail.
func Multi(ps ...Publisher) Publisher {
	return multi(ps)
}

func (m multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
