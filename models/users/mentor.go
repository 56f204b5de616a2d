package users

import (
	"time"
)

// MentorProfile — публичный профиль наставника. Ровно один профиль на
// пользователя. AvgRating и TotalRatings — производные от отзывов,
// пересчитываются при каждом новом отзыве.
type MentorProfile struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"uniqueIndex;not null" json:"userId"`
	User         User           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Bio          string         `gorm:"size:1000;not null" json:"bio"`
	Expertise    []ExpertiseTag `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Experience   int            `gorm:"not null;default:0" json:"experience"` // лет опыта, >= 0
	Availability string         `gorm:"size:255" json:"availability"`
	ProfilePhoto string         `gorm:"size:512" json:"profilePhoto,omitempty"`
	AvgRating    float64        `gorm:"index;default:0" json:"avgRating"` // в диапазоне [0,5]
	TotalRatings int            `gorm:"default:0" json:"totalRatings"`
	TotalSessions int           `gorm:"default:0" json:"totalSessions"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ExpertiseTag — один тег экспертизы профиля (множество строк).
type ExpertiseTag struct {
	ID              uint   `gorm:"primaryKey" json:"-"`
	MentorProfileID uint   `gorm:"index;not null" json:"-"`
	Name            string `gorm:"size:100;not null" json:"name"`
}

// TagNames возвращает теги профиля как срез строк для ответа API.
func (p *MentorProfile) TagNames() []string {
	names := make([]string, 0, len(p.Expertise))
	for _, t := range p.Expertise {
		names = append(names, t.Name)
	}
	return names
}
