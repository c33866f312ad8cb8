package worker

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NudgeFromDeliveries turns a RabbitMQ delivery stream into a wake-up
// channel for an idle worker. The message body is only a hint that a job was
// created — the database claim remains the source of truth — so deliveries
// are acked immediately and coalesced into a buffered channel: a worker that
// is already awake needs no second nudge.
func NudgeFromDeliveries(ctx context.Context, logger *slog.Logger, deliveries <-chan amqp.Delivery) <-chan struct{} {
	nudge := make(chan struct{}, 1)

	go func() {
		defer close(nudge)
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					logger.Warn("Nudge delivery channel closed")
					return
				}
				if err := delivery.Ack(false); err != nil {
					logger.Warn("Failed to ack nudge message",
						slog.String("error", err.Error()),
					)
				}
				select {
				case nudge <- struct{}{}:
				default:
				}
			}
		}
	}()

	return nudge
}
