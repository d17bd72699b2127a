package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "canteen:room:"

// bridgeMessage wraps an envelope with the publishing instance's id so a
// subscriber can skip events that originated locally.
type bridgeMessage struct {
	Origin   string   `json:"origin"`
	Envelope Envelope `json:"envelope"`
}

// RedisBridge extends the in-process hub across instances. Publishes are
// mirrored to a Redis channel per room; a subscriber on each instance feeds
// remote publishes back into its local hub. Single-instance deployments run
// without it.
type RedisBridge struct {
	client *redis.Client
	id     string
}

func NewRedisBridge(addr string) *RedisBridge {
	return &RedisBridge{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		id:     uuid.New().String(),
	}
}

// Publish mirrors an event to the room's Redis channel. Failure is logged
// only; the local hub already delivered to this instance's clients.
func (b *RedisBridge) Publish(room, event string, payload interface{}) {
	data, err := json.Marshal(bridgeMessage{
		Origin:   b.id,
		Envelope: Envelope{Event: event, Data: payload},
	})
	if err != nil {
		log.Printf("realtime: marshal %s event for redis: %v", event, err)
		return
	}
	if err := b.client.Publish(context.Background(), channelPrefix+room, data).Err(); err != nil {
		log.Printf("realtime: redis publish to room %s: %v", room, err)
	}
}

// Run subscribes to every room channel and forwards events published by
// other instances into the local hub until the context is cancelled.
func (b *RedisBridge) Run(ctx context.Context, hub *Hub) {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var bm bridgeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				log.Printf("realtime: bad redis payload on %s: %v", msg.Channel, err)
				continue
			}
			if bm.Origin == b.id {
				continue
			}
			room := strings.TrimPrefix(msg.Channel, channelPrefix)
			hub.Publish(room, bm.Envelope.Event, bm.Envelope.Data)
		}
	}
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}
