package display

import (
	"context"
	"errors"
	"fmt"
)

// Sink delivers frames to a display. Publishing the same payload twice must
// be harmless: retained messages overwrite each other.
type Sink interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, topic string, payload []byte, retain bool) error

func (f SinkFunc) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	return f(ctx, topic, payload, retain)
}

// Tee publishes every frame to all of its sinks. A failing sink does not stop
// the others; their errors are joined.
type Tee []Sink

func (t Tee) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	var errs []error
	for _, s := range t {
		if err := s.Publish(ctx, topic, payload, retain); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishError is a transport failure reported by a Sink.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("display: publish to %q: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
