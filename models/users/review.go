package users

import (
	"time"
)

// Review — оценка наставника менти. Не больше одного отзыва на пару
// (наставник, автор) — составной уникальный индекс.
type Review struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	MentorProfileID uint      `gorm:"not null;uniqueIndex:idx_reviews_mentor_author" json:"mentorId"`
	AuthorID        uint      `gorm:"not null;uniqueIndex:idx_reviews_mentor_author" json:"userId"`
	Author          User      `gorm:"foreignKey:AuthorID" json:"-"`
	Rating          int       `gorm:"not null" json:"rating"` // целое 1..5
	Comment         string    `gorm:"size:500;not null" json:"comment"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time `json:"-"`
}
