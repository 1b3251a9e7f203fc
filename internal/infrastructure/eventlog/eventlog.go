// Package eventlog is the shared, append-only record stream that relays room
// traffic between interchange nodes. Every node appends to the same log and
// every node consumes all of it. The Redis and RabbitMQ drivers deliver in one
// total order, so records of a room arrive FIFO; the in-memory driver keeps the
// order of each appender.
package eventlog

import (
	"context"
	"errors"
)

type Kind string

const (
	KindMessage   Kind = "message"
	KindLifecycle Kind = "lifecycle"
)

// Record is one entry in the shared log.
type Record struct {
	// ID is assigned by the log on consumption and is empty when appending.
	ID         string `json:"-"`
	Node       string `json:"node"`
	Room       string `json:"room"`
	Kind       Kind   `json:"kind"`
	Event      string `json:"event"`
	Connection string `json:"conn,omitempty"`
	Payload    []byte `json:"payload,omitempty"`
}

var ErrInvalidRecord = errors.New("invalid log record")

func (r Record) Validate() error {
	if r.Node == "" || r.Room == "" || r.Event == "" {
		return ErrInvalidRecord
	}
	if r.Kind != KindMessage && r.Kind != KindLifecycle {
		return ErrInvalidRecord
	}
	return nil
}

// Handler processes one consumed record. Errors are logged by the driver and
// never stop consumption.
type Handler func(ctx context.Context, rec Record) error

type Log interface {
	Append(ctx context.Context, rec Record) error
	// Subscribe registers handler for every record appended after the call
	// returns and consumes in the background until ctx is done or Close is called.
	Subscribe(ctx context.Context, handler Handler) error
	Ping(ctx context.Context) error
	Close() error
}
