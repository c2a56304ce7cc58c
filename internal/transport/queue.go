// Package transport carries pipeline messages between stages.
//
// The pipeline only assumes a publish/deliver contract with at-least-once
// semantics: a message that is received but not acked returns to its queue
// and is redelivered. Downstream recomputation is idempotent, so duplicate
// delivery is always safe.
package transport

import (
	"context"
	"encoding/json"
	"time"
)

// Publisher publishes one message to a named queue.
//
// Publish must either enqueue the message durably or return an error;
// callers treat a publish failure as a failure of their whole batch so no
// sibling message is silently dropped.
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Delivery is one received message awaiting acknowledgement.
//
// Ack removes the message permanently. Nack returns it to its queue for
// redelivery. A consumer crash between receive and ack leaves the message
// parked in a processing list; Recover moves such messages back.
type Delivery interface {
	Body() []byte
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// Consumer receives messages from a named queue.
type Consumer interface {
	// Receive blocks up to wait for one message. It returns (nil, nil) when
	// the wait elapses with an empty queue.
	Receive(ctx context.Context, queue string, wait time.Duration) (Delivery, error)

	// ReceiveBatch returns up to max messages: it blocks up to wait for the
	// first one, then drains without blocking. An empty batch is (nil, nil).
	ReceiveBatch(ctx context.Context, queue string, max int, wait time.Duration) ([]Delivery, error)
}

// Decode unmarshals a delivery body into v.
func Decode(d Delivery, v any) error {
	return json.Unmarshal(d.Body(), v)
}
