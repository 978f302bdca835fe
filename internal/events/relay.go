package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Relay forwards user ids published on channel to the hub until ctx is done.
// Every server replica runs one so writes handled elsewhere still reach the
// clients connected here.
func Relay(ctx context.Context, rc *redis.Client, channel string, hub *Hub, logger log.FieldLogger) {
	sub := rc.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				logger.Error("board events subscription closed")
				return
			}
			if msg.Payload == "" {
				continue
			}
			hub.Invalidate(ctx, msg.Payload)
		}
	}
}
