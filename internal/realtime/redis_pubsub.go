package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel carries every room emit between processes.
const Channel = "realtime:events"

// Envelope is the message published to Redis for cross-instance delivery.
type Envelope struct {
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Except string          `json:"except,omitempty"`
	Origin string          `json:"origin"`
	At     int64           `json:"at"`
}

// RedisPubSub implements Bus using Redis pub/sub.
type RedisPubSub struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge on Channel.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, channel: Channel, logger: logger}
}

// Publish sends an envelope to every subscribed process.
func (r *RedisPubSub) Publish(ctx context.Context, env Envelope) error {
	if env.At == 0 {
		env.At = time.Now().Unix()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Subscribe calls handler for each envelope until cancel is called or ctx is done.
func (r *RedisPubSub) Subscribe(ctx context.Context, handler func(Envelope)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn("bad realtime envelope", zap.Error(err))
					continue
				}
				handler(env)
			}
		}
	}()
	return cancelCtx, nil
}

// Publisher emits room events from a process without sockets, such as the worker.
type Publisher struct {
	bus    Bus
	origin string
	logger *zap.Logger
}

// NewPublisher creates a publish-only dispatcher.
func NewPublisher(bus Bus, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{bus: bus, origin: "publisher:" + uuid.NewString(), logger: logger}
}

func (p *Publisher) publish(room, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		p.logger.Warn("encode realtime payload failed", zap.Error(err), zap.String("event", event))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.bus.Publish(ctx, Envelope{Room: room, Event: event, Data: data, Origin: p.origin}); err != nil {
		p.logger.Warn("realtime publish failed", zap.Error(err), zap.String("room", room), zap.String("event", event))
	}
}

// EmitToAll publishes an event for every connection.
func (p *Publisher) EmitToAll(event string, payload interface{}) {
	p.publish(RoomAll, event, payload)
}

// EmitToUsers publishes an event to the personal rooms of userIDs.
func (p *Publisher) EmitToUsers(userIDs []uuid.UUID, event string, payload interface{}) {
	for _, id := range userIDs {
		p.publish(UserRoom(id), event, payload)
	}
}
