package redisc

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// BookingStatusChannel carries JSON status updates from booking workflows.
const BookingStatusChannel = "booking:status"

// SubscribeBookingStatus delivers every payload on BookingStatusChannel to
// handler until ctx is cancelled. The subscription is confirmed before it
// returns; delivery runs in a goroutine.
func SubscribeBookingStatus(ctx context.Context, client *redis.Client, handler func(data []byte) error) error {
	pubsub := client.Subscribe(ctx, BookingStatusChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler([]byte(msg.Payload)); err != nil {
					slog.Warn("booking status update rejected", "error", err)
					continue
				}
				slog.Debug("booking status update applied", "channel", msg.Channel)
			}
		}
	}()
	return nil
}
