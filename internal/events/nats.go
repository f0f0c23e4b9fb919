package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
)

// NATSExporter publishes notifications to a JetStream stream for external consumers.
type NATSExporter struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewNATSExporter connects to url and makes sure stream captures tenant subjects.
func NewNATSExporter(url, stream string, opts ...nats.Option) (*NATSExporter, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, err
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{"tenant.>"},
		}); err != nil {
			nc.Close()
			return nil, err
		}
	}

	return &NATSExporter{conn: nc, js: js}, nil
}

// Publish encodes n as JSON and publishes it on n.Subject().
func (e *NATSExporter) Publish(ctx context.Context, n Notification) error {
	if e == nil {
		return errors.New("nil nats exporter")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = e.js.Publish(n.Subject(), data, nats.Context(ctx))
	return err
}

// Close drains the connection.
func (e *NATSExporter) Close() {
	if e == nil {
		return
	}
	if err := e.conn.Drain(); err != nil {
		e.conn.Close()
	}
}
