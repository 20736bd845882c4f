package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn the part of *nats.Conn used for publishing
type natsConn interface {
	Publish(subject string, data []byte) error
}

// NatsPublisher publishes events as JSON to <subject>.<kind>
type NatsPublisher struct {
	conn    natsConn
	subject string
}

// NewNatsPublisher returns a publisher on an established connection
func NewNatsPublisher(conn *nats.Conn, subject string) *NatsPublisher {
	return &NatsPublisher{conn: conn, subject: subject}
}

// DialNats connects to a NATS server
func DialNats(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats [%v]: %w", url, err)
	}
	return conn, nil
}

func (p *NatsPublisher) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event [%v]: %w", event.ID, err)
	}
	subject := p.subject + "." + event.Kind
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("nats publish [%v]: %w", subject, err)
	}
	return nil
}
