// Package notify delivers withdrawal events to interested parties. Every notifier is
// best-effort: a failed delivery never affects the request that produced the event.
package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Message is the envelope a notifier receives.
type Message struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, event string, payload any) error {
	n.logger.Info("notification", zap.String("event", event), zap.Any("payload", payload))
	return nil
}

// Sender is anything that accepts events.
type Sender interface {
	Send(ctx context.Context, event string, payload any) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Sender

func (m Multi) Send(ctx context.Context, event string, payload any) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Send(ctx, event, payload))
	}
	return err
}
