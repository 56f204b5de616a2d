package chat

import (
	"time"
)

// MaxMessageLength — предел длины текста сообщения.
const MaxMessageLength = 2000

// Message — личное сообщение между двумя пользователями. Стороны
// адресуются внешними идентификаторами (clerk id), как и канал
// реального времени. Запись неизменяема после создания, кроме флага
// Read, который переходит только false -> true.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	PublicID   string    `gorm:"size:36;uniqueIndex;not null" json:"id"` // uuid, по нему клиент дедуплицирует
	SenderID   string    `gorm:"size:255;index:idx_messages_pair;not null" json:"senderId"`
	ReceiverID string    `gorm:"size:255;index:idx_messages_pair;not null" json:"receiverId"`
	Text       string    `gorm:"size:2000;not null" json:"text"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"` // назначается сервером
}
