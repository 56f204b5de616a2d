package chat

import (
	"time"
)

// Роли реплик в AI-диалоге.
const (
	AIRoleUser      = "user"
	AIRoleAssistant = "assistant"
)

// AIChat — журнал разговора пользователя с AI-наставником. Один документ
// на пользователя, реплики только добавляются, порядок — порядок вставки.
type AIChat struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	UserID    string          `gorm:"size:255;uniqueIndex;not null" json:"userId"` // внешний id владельца
	Messages  []AIChatMessage `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// AIChatMessage — одна реплика диалога. Порядок вставки сохраняется
// автоинкрементным ключом.
type AIChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ChatID    uint      `gorm:"index;not null" json:"-"`
	Role      string    `gorm:"size:10;not null" json:"role"` // user или assistant
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}
