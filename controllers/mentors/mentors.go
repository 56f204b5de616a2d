package mentors

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/models/users"
)

const defaultListLimit = 20

// mentorCard — элемент списка наставников.
type mentorCard struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	ProfilePhoto string   `json:"profilePhoto,omitempty"`
	Bio          string   `json:"bio"`
	Expertise    []string `json:"expertise"`
	Experience   int      `json:"experience"`
	AvgRating    float64  `json:"avgRating"`
	TotalRatings int      `json:"totalRatings"`
}

// ListMentors — список с фильтрами: expertise (принадлежность множеству
// тегов), minRating, сортировка по рейтингу или дате, limit. Текстовый
// поиск применяется ПОСЛЕ запроса, к уже ограниченной странице, поэтому
// может вернуть меньше limit записей — поведение оригинала сохранено.
func ListMentors(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	q := r.URL.Query()

	limit := defaultListLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}

	query := db.Model(&users.MentorProfile{}).Preload("Expertise").Preload("User")

	if expertise := q.Get("expertise"); expertise != "" {
		tags := splitLower(expertise)
		sub := db.Model(&users.ExpertiseTag{}).
			Select("mentor_profile_id").
			Where("LOWER(name) IN ?", tags)
		query = query.Where("id IN (?)", sub)
	}

	if minRating := q.Get("minRating"); minRating != "" {
		min, err := strconv.ParseFloat(minRating, 64)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "Invalid minRating")
			return
		}
		query = query.Where("avg_rating >= ?", min)
	}

	if q.Get("sortBy") == "rating" {
		query = query.Order("avg_rating DESC")
	} else {
		query = query.Order("created_at DESC")
	}

	var profiles []users.MentorProfile
	if err := query.Limit(limit).Find(&profiles).Error; err != nil {
		api.Internal(w, "Failed to fetch mentors", err)
		return
	}

	if search := strings.ToLower(q.Get("search")); search != "" {
		filtered := profiles[:0]
		for _, p := range profiles {
			if matchesSearch(&p, search) {
				filtered = append(filtered, p)
			}
		}
		profiles = filtered
	}

	cards := make([]mentorCard, 0, len(profiles))
	for _, p := range profiles {
		cards = append(cards, toCard(&p))
	}

	api.OK(w, http.StatusOK, cards)
}

func matchesSearch(p *users.MentorProfile, search string) bool {
	if strings.Contains(strings.ToLower(p.User.Name), search) ||
		strings.Contains(strings.ToLower(p.Bio), search) {
		return true
	}
	for _, t := range p.Expertise {
		if strings.Contains(strings.ToLower(t.Name), search) {
			return true
		}
	}
	return false
}

func toCard(p *users.MentorProfile) mentorCard {
	photo := p.ProfilePhoto
	if photo == "" {
		photo = p.User.ProfilePhoto
	}

	return mentorCard{
		ID:           p.ID,
		Name:         p.User.Name,
		ProfilePhoto: photo,
		Bio:          p.Bio,
		Expertise:    p.TagNames(),
		Experience:   p.Experience,
		AvgRating:    p.AvgRating,
		TotalRatings: p.TotalRatings,
	}
}

type createProfileRequest struct {
	UserID       uint     `json:"userId"`
	Bio          string   `json:"bio"`
	Expertise    []string `json:"expertise"`
	Experience   int      `json:"experience"`
	Availability string   `json:"availability"`
	ProfilePhoto string   `json:"profilePhoto"`
}

// CreateMentorProfile — идемпотентное создание: существующий профиль
// владельца возвращается как есть вместо ошибки уникальности.
func CreateMentorProfile(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	var req createProfileRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if req.UserID == 0 || req.Bio == "" || req.Availability == "" {
		api.Fail(w, http.StatusBadRequest, "userId, bio and availability are required")
		return
	}
	if len(req.Bio) > 1000 {
		api.Fail(w, http.StatusBadRequest, "Bio must be at most 1000 characters")
		return
	}
	if req.Experience < 0 {
		api.Fail(w, http.StatusBadRequest, "Experience must be non-negative")
		return
	}

	var existing users.MentorProfile
	err := db.Preload("Expertise").Where("user_id = ?", req.UserID).First(&existing).Error
	if err == nil {
		api.OK(w, http.StatusOK, shapeProfile(&existing))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		api.Internal(w, "Failed to create mentor profile", err)
		return
	}

	profile := users.MentorProfile{
		UserID:       req.UserID,
		Bio:          req.Bio,
		Experience:   req.Experience,
		Availability: req.Availability,
		ProfilePhoto: req.ProfilePhoto,
	}
	for _, name := range req.Expertise {
		if name = strings.TrimSpace(name); name != "" {
			profile.Expertise = append(profile.Expertise, users.ExpertiseTag{Name: name})
		}
	}

	if err := db.Create(&profile).Error; err != nil {
		api.Internal(w, "Failed to create mentor profile", err)
		return
	}

	api.OK(w, http.StatusCreated, shapeProfile(&profile))
}

// GetMentor — профиль по id вместе с данными владельца.
func GetMentor(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid mentor id")
		return
	}

	var profile users.MentorProfile
	if err := db.Preload("Expertise").Preload("User").First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "Mentor not found")
			return
		}
		api.Internal(w, "Failed to fetch mentor", err)
		return
	}

	photo := profile.ProfilePhoto
	if photo == "" {
		photo = profile.User.ProfilePhoto
	}

	api.OK(w, http.StatusOK, map[string]any{
		"id":            profile.ID,
		"userId":        profile.User.ClerkID,
		"name":          profile.User.Name,
		"profilePhoto":  photo,
		"bio":           profile.Bio,
		"expertise":     profile.TagNames(),
		"experience":    profile.Experience,
		"availability":  profile.Availability,
		"avgRating":     profile.AvgRating,
		"totalRatings":  profile.TotalRatings,
		"totalSessions": profile.TotalSessions,
	})
}

// UpdateMentor — частичное обновление; набор тегов, если передан,
// заменяется целиком.
func UpdateMentor(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid mentor id")
		return
	}

	var body map[string]any
	if err := api.Decode(r, &body); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	var profile users.MentorProfile
	if err := db.Preload("Expertise").First(&profile, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "Mentor not found")
			return
		}
		api.Internal(w, "Failed to update mentor", err)
		return
	}

	updates := map[string]any{}
	if v, ok := body["bio"].(string); ok {
		if len(v) > 1000 {
			api.Fail(w, http.StatusBadRequest, "Bio must be at most 1000 characters")
			return
		}
		updates["bio"] = v
	}
	if v, ok := body["availability"].(string); ok {
		updates["availability"] = v
	}
	if v, ok := body["profilePhoto"].(string); ok {
		updates["profile_photo"] = v
	}
	if v, ok := body["experience"].(float64); ok {
		if v < 0 {
			api.Fail(w, http.StatusBadRequest, "Experience must be non-negative")
			return
		}
		updates["experience"] = int(v)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&profile).Updates(updates).Error; err != nil {
				return err
			}
		}

		if raw, ok := body["expertise"].([]any); ok {
			if err := tx.Where("mentor_profile_id = ?", profile.ID).Delete(&users.ExpertiseTag{}).Error; err != nil {
				return err
			}
			profile.Expertise = nil
			for _, item := range raw {
				if name, ok := item.(string); ok && strings.TrimSpace(name) != "" {
					tag := users.ExpertiseTag{MentorProfileID: profile.ID, Name: strings.TrimSpace(name)}
					if err := tx.Create(&tag).Error; err != nil {
						return err
					}
					profile.Expertise = append(profile.Expertise, tag)
				}
			}
		}
		return nil
	})
	if err != nil {
		api.Internal(w, "Failed to update mentor", err)
		return
	}

	// Перечитываем профиль, чтобы ответ отражал применённые изменения.
	if err := db.Preload("Expertise").First(&profile, id).Error; err != nil {
		api.Internal(w, "Failed to update mentor", err)
		return
	}

	api.OK(w, http.StatusOK, shapeProfile(&profile))
}

func shapeProfile(p *users.MentorProfile) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"userId":        p.UserID,
		"bio":           p.Bio,
		"expertise":     p.TagNames(),
		"experience":    p.Experience,
		"availability":  p.Availability,
		"profilePhoto":  p.ProfilePhoto,
		"avgRating":     p.AvgRating,
		"totalRatings":  p.TotalRatings,
		"totalSessions": p.TotalSessions,
	}
}

func splitLower(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
