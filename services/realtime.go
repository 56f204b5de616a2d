package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrSubscribeUnsupported — реализация доставляет события только во
// внешний сервис и не умеет внутрипроцессной подписки.
var ErrSubscribeUnsupported = errors.New("subscribe is not supported by this notifier")

// Event — событие канала реального времени.
type Event struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data"`
}

// Notifier — абстракция pub/sub доставки: авторизация приватного канала,
// публикация события и подписка. Конкретный провайдер (Pusher, Redis,
// память) подставляется при старте. Гарантий доставки и порядка сверх
// нижележащего сервиса нет — клиент дедуплицирует по id сообщения.
type Notifier interface {
	Authorize(socketID, channel string) (string, error)
	Publish(ctx context.Context, channel, event string, payload any) error
	Subscribe(ctx context.Context, channel string) (<-chan Event, error)
}

// ChannelName — детерминированное имя приватного канала пары: обе
// стороны сортируют идентификаторы и получают одно и то же имя.
func ChannelName(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return "private-chat-" + pair[0] + "-" + pair[1]
}

// IsChannelParticipant проверяет, что clerkID — одна из сторон канала
// пары. Идентификаторы могут содержать дефисы, поэтому разбор по "-"
// невозможен: проверяется префикс/суффикс остатка имени.
func IsChannelParticipant(channel, clerkID string) bool {
	rest, ok := strings.CutPrefix(channel, "private-chat-")
	if !ok || clerkID == "" {
		return false
	}

	if rest == clerkID+"-"+clerkID {
		return true
	}
	return strings.HasPrefix(rest, clerkID+"-") || strings.HasSuffix(rest, "-"+clerkID)
}

// channelAuthorizer подписывает авторизацию приватного канала по схеме
// Pusher: key:hex(HMAC-SHA256(secret, "socketId:channel")).
type channelAuthorizer struct {
	key    string
	secret string
}

func (a channelAuthorizer) Authorize(socketID, channel string) (string, error) {
	if socketID == "" || channel == "" {
		return "", errors.New("socket id and channel name are required")
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(socketID + ":" + channel))
	return a.key + ":" + hex.EncodeToString(mac.Sum(nil)), nil
}

// MemoryNotifier — внутрипроцессная реализация для тестов и локальной
// разработки без внешнего брокера.
type MemoryNotifier struct {
	channelAuthorizer

	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewMemoryNotifier(key, secret string) *MemoryNotifier {
	return &MemoryNotifier{
		channelAuthorizer: channelAuthorizer{key: key, secret: secret},
		subs:              make(map[string]map[chan Event]struct{}),
	}
}

func (m *MemoryNotifier) Publish(_ context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ev := Event{ID: uuid.NewString(), Channel: channel, Name: event, Data: data}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subs[channel] {
		select {
		case sub <- ev:
		default:
			// Подписчик не успевает — событие для него теряется, как и у
			// внешнего брокера без подтверждений.
		}
	}
	return nil
}

func (m *MemoryNotifier) Subscribe(ctx context.Context, channel string) (<-chan Event, error) {
	ch := make(chan Event, 16)

	m.mu.Lock()
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[chan Event]struct{})
	}
	m.subs[channel][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[channel], ch)
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
