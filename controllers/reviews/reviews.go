package reviews

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/controllers/authentication"
	"github.com/omxchavan/mentos-talk/models/users"
)

// reviewItem — отзыв, аннотированный данными автора.
type reviewItem struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	UserName  string    `json:"userName"`
	UserPhoto string    `json:"userPhoto,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListReviews — все отзывы наставника, новые первыми.
func ListReviews(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	mentorID, err := strconv.ParseUint(r.URL.Query().Get("mentorId"), 10, 32)
	if err != nil || mentorID == 0 {
		api.Fail(w, http.StatusBadRequest, "mentorId is required")
		return
	}

	var list []users.Review
	if err := db.Preload("Author").
		Where("mentor_profile_id = ?", mentorID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		api.Internal(w, "Failed to fetch reviews", err)
		return
	}

	items := make([]reviewItem, 0, len(list))
	for _, rv := range list {
		items = append(items, shapeReview(&rv))
	}

	api.OK(w, http.StatusOK, items)
}

type createReviewRequest struct {
	MentorID uint   `json:"mentorId"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// CreateReview — один отзыв на пару (наставник, автор). Вставка отзыва и
// пересчёт avgRating/totalRatings выполняются в одной транзакции, чтобы
// агрегат не расходился с отзывами при сбое или гонке двух авторов.
func CreateReview(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createReviewRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if req.MentorID == 0 {
		api.Fail(w, http.StatusBadRequest, "mentorId is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		api.Fail(w, http.StatusBadRequest, "Rating must be an integer between 1 and 5")
		return
	}
	if req.Comment == "" || len(req.Comment) > 500 {
		api.Fail(w, http.StatusBadRequest, "Comment is required and must be at most 500 characters")
		return
	}

	var author users.User
	if err := db.Where("clerk_id = ?", claims.Subject).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "User not found")
			return
		}
		api.Internal(w, "Failed to create review", err)
		return
	}

	var review users.Review
	txErr := db.Transaction(func(tx *gorm.DB) error {
		var profile users.MentorProfile
		if err := tx.First(&profile, req.MentorID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&users.Review{}).
			Where("mentor_profile_id = ? AND author_id = ?", profile.ID, author.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errAlreadyReviewed
		}

		review = users.Review{
			MentorProfileID: profile.ID,
			AuthorID:        author.ID,
			Rating:          req.Rating,
			Comment:         req.Comment,
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}

		// Полный пересчёт по всем отзывам наставника: O(n), приемлемо на
		// текущем масштабе.
		var agg struct {
			Total int64
			Avg   float64
		}
		if err := tx.Model(&users.Review{}).
			Where("mentor_profile_id = ?", profile.ID).
			Select("COUNT(*) AS total, COALESCE(AVG(rating), 0) AS avg").
			Scan(&agg).Error; err != nil {
			return err
		}

		return tx.Model(&profile).Updates(map[string]any{
			"avg_rating":    math.Round(agg.Avg*10) / 10,
			"total_ratings": agg.Total,
		}).Error
	})

	switch {
	case txErr == nil:
	case errors.Is(txErr, errAlreadyReviewed):
		api.Fail(w, http.StatusBadRequest, "You have already reviewed this mentor")
		return
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		api.Fail(w, http.StatusNotFound, "Mentor not found")
		return
	default:
		api.Internal(w, "Failed to create review", txErr)
		return
	}

	review.Author = author
	api.OK(w, http.StatusCreated, shapeReview(&review))
}

var errAlreadyReviewed = errors.New("duplicate review")

func shapeReview(rv *users.Review) reviewItem {
	return reviewItem{
		ID:        rv.ID,
		UserID:    rv.AuthorID,
		UserName:  rv.Author.Name,
		UserPhoto: rv.Author.ProfilePhoto,
		Rating:    rv.Rating,
		Comment:   rv.Comment,
		CreatedAt: rv.CreatedAt,
	}
}
