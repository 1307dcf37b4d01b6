package mailer

import "context"

// Message is a single outbound mail.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sink delivers messages to an external channel. Implementations must treat
// delivery as best-effort: callers never depend on a send succeeding.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// NoopSink discards every message. Used when no relay is configured.
type NoopSink struct{}

// NewNoopSink returns a sink that drops messages silently.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Send implements Sink.
func (s *NoopSink) Send(ctx context.Context, msg Message) error {
	return nil
}
