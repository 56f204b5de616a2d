package usersControl

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/models/users"
)

// GetUsers — поиск по внешнему id (?clerkId=...) или список первых 50.
func GetUsers(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	clerkID := r.URL.Query().Get("clerkId")

	if clerkID != "" {
		var user users.User
		if err := db.Where("clerk_id = ?", clerkID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				api.Fail(w, http.StatusNotFound, "User not found")
				return
			}
			api.Internal(w, "Failed to fetch users", err)
			return
		}

		api.OK(w, http.StatusOK, user)
		return
	}

	var list []users.User
	if err := db.Limit(50).Find(&list).Error; err != nil {
		api.Internal(w, "Failed to fetch users", err)
		return
	}
	if list == nil {
		list = make([]users.User, 0)
	}

	api.OK(w, http.StatusOK, list)
}

type createUserRequest struct {
	ClerkID      string `json:"clerkId"`
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfilePhoto string `json:"profilePhoto"`
}

// CreateUser — идемпотентное создание: повторный запрос с тем же clerkId
// возвращает существующий документ без изменений.
func CreateUser(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	var req createUserRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if req.ClerkID == "" || req.Name == "" || req.Email == "" {
		api.Fail(w, http.StatusBadRequest, "clerkId, role, name and email are required")
		return
	}
	if !users.ValidRole(req.Role) {
		api.Fail(w, http.StatusBadRequest, "Invalid role. Allowed roles: mentor, mentee")
		return
	}

	var existing users.User
	err := db.Where("clerk_id = ?", req.ClerkID).First(&existing).Error
	if err == nil {
		api.OK(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		api.Internal(w, "Failed to create user", err)
		return
	}

	user := users.User{
		ClerkID:      req.ClerkID,
		Role:         req.Role,
		Name:         req.Name,
		Email:        req.Email,
		ProfilePhoto: req.ProfilePhoto,
	}
	if err := db.Create(&user).Error; err != nil {
		api.Internal(w, "Failed to create user", err)
		return
	}

	api.OK(w, http.StatusCreated, user)
}

// GetUserByID — публичная карточка пользователя по внутреннему id.
func GetUserByID(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	id, err := parseID(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var user users.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "User not found")
			return
		}
		api.Internal(w, "Failed to fetch user", err)
		return
	}

	api.OK(w, http.StatusOK, map[string]any{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"profilePhoto": user.ProfilePhoto,
		"role":         user.Role,
	})
}

// UpdateUser — частичное обновление: меняются только переданные поля.
func UpdateUser(w http.ResponseWriter, r *http.Request, db *gorm.DB) {
	id, err := parseID(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var body map[string]any
	if err := api.Decode(r, &body); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	var user users.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.Fail(w, http.StatusNotFound, "User not found")
			return
		}
		api.Internal(w, "Failed to update user", err)
		return
	}

	updates := map[string]any{}
	if v, ok := body["name"].(string); ok {
		updates["name"] = v
	}
	if v, ok := body["email"].(string); ok {
		updates["email"] = v
	}
	if v, ok := body["profilePhoto"].(string); ok {
		updates["profile_photo"] = v
	}
	if v, ok := body["role"].(string); ok {
		if !users.ValidRole(v) {
			api.Fail(w, http.StatusBadRequest, "Invalid role. Allowed roles: mentor, mentee")
			return
		}
		updates["role"] = v
	}

	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			api.Internal(w, "Failed to update user", err)
			return
		}
	}

	api.OK(w, http.StatusOK, user)
}

func parseID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	return uint(id), err
}
