package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisNotifier — реализация Notifier поверх Redis Pub/Sub: один
// redis-канал на канал чата, события сериализуются в JSON. Подписчики
// одного процесса разделяют одну redis-подписку на канал.
type RedisNotifier struct {
	channelAuthorizer

	client *redis.Client

	mu      sync.Mutex
	pubsubs map[string]*redis.PubSub
	subs    map[string]map[chan Event]struct{}
}

func NewRedisNotifier(client *redis.Client, key, secret string) *RedisNotifier {
	return &RedisNotifier{
		channelAuthorizer: channelAuthorizer{key: key, secret: secret},
		client:            client,
		pubsubs:           make(map[string]*redis.PubSub),
		subs:              make(map[string]map[chan Event]struct{}),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ev := Event{ID: uuid.NewString(), Channel: channel, Name: event, Data: data}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return n.client.Publish(ctx, channel, raw).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	n.mu.Lock()

	if _, ok := n.pubsubs[channel]; !ok {
		pubsub := n.client.Subscribe(context.Background(), channel)
		n.pubsubs[channel] = pubsub
		go n.receive(channel, pubsub)
	}

	if n.subs[channel] == nil {
		n.subs[channel] = make(map[chan Event]struct{})
	}

	ch := make(chan Event, 16)
	n.subs[channel][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.remove(channel, ch)
	}()

	return ch, nil
}

func (n *RedisNotifier) receive(channel string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Не удалось разобрать событие из Redis")
			continue
		}

		n.mu.Lock()
		for sub := range n.subs[channel] {
			select {
			case sub <- ev:
			default:
				// Медленный подписчик: событие пропускается, повторов нет.
			}
		}
		n.mu.Unlock()
	}
}

func (n *RedisNotifier) remove(channel string, ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.subs[channel], ch)
	close(ch)

	if len(n.subs[channel]) == 0 {
		if pubsub, ok := n.pubsubs[channel]; ok {
			_ = pubsub.Close()
			delete(n.pubsubs, channel)
		}
		delete(n.subs, channel)
	}
}
