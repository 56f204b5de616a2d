package users

import (
	"time"
)

// Роли пользователей платформы.
const (
	RoleMentor = "mentor"
	RoleMentee = "mentee"
)

// User — аккаунт платформы. Идентификация делегирована внешнему
// провайдеру: ClerkID — его стабильный идентификатор, один документ на
// один внешний id.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ClerkID      string    `gorm:"size:255;uniqueIndex;not null" json:"clerkId"`
	Role         string    `gorm:"size:20;not null" json:"role"` // mentor или mentee
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null" json:"email"`
	ProfilePhoto string    `gorm:"size:512" json:"profilePhoto,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ValidRole проверяет роль из входных данных.
func ValidRole(role string) bool {
	return role == RoleMentor || role == RoleMentee
}
