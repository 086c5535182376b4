// Package notifiers delivers automation notifications to users.
package notifiers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/protocol"
)

// Log writes every notification to the logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("module", "notifier")}
}

func (n *Log) Notify(ctx context.Context, userID, message string) error {
	n.logger.InfoContext(ctx, "Notification", "user_id", userID, "message", message)

	return nil
}

// Bus publishes a notification.sent event per notification, keyed by user.
type Bus struct {
	publisher protocol.Publisher
}

func NewBus(publisher protocol.Publisher) *Bus {
	return &Bus{publisher: publisher}
}

func (n *Bus) Notify(ctx context.Context, userID, message string) error {
	event := events.NotificationSent{
		BaseEvent: events.NewBaseEvent(events.NotificationSentEvent),
		UserID:    userID,
		Message:   message,
	}

	if err := n.publisher.Publish(ctx, userID, event); err != nil {
		return fmt.Errorf("failed to publish notification for %s: %w", userID, err)
	}

	return nil
}

// FanOut delivers to every notifier and reports the joined failures. One
// failing notifier does not stop the others.
type FanOut struct {
	notifiers []protocol.Notifier
	metrics   *metrics.Registry
}

func NewFanOut(registry *metrics.Registry, notifiers ...protocol.Notifier) *FanOut {
	return &FanOut{notifiers: notifiers, metrics: registry}
}

func (n *FanOut) Notify(ctx context.Context, userID, message string) error {
	var errs []error

	for _, notifier := range n.notifiers {
		if err := notifier.Notify(ctx, userID, message); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	n.metrics.ObserveNotification(err == nil)

	return err
}
