package aichat

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/controllers/authentication"
	"github.com/omxchavan/mentos-talk/models/chat"
	"github.com/omxchavan/mentos-talk/services"
)

// GetHistory — история AI-диалога вызывающего. Пустая история — это
// успех с пустым списком, а не 404.
func GetHistory(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var session chat.AIChat
	err = db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Where("user_id = ?", claims.Subject).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.OK(w, http.StatusOK, map[string]any{"messages": []chat.AIChatMessage{}})
		return
	}
	if err != nil {
		api.Internal(w, "Failed to fetch AI chat history", err)
		return
	}

	api.OK(w, http.StatusOK, session)
}

type sendTurnRequest struct {
	Message string `json:"message"`
}

// SendTurn — один ход диалога: реплика пользователя дописывается в
// журнал, промпт собирается из системной инструкции и ПОЛНОЙ истории,
// внешний вызов выполняется один раз без повторов. Отказ генерации
// поглощается: вместо ответа модели сохраняется заготовленная реплика, и
// запрос всё равно завершается success.
func SendTurn(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity, ai *services.AIClient) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req sendTurnRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Message == "" {
		api.Fail(w, http.StatusBadRequest, "Message is required")
		return
	}

	var session chat.AIChat
	err = db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Where("user_id = ?", claims.Subject).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = chat.AIChat{UserID: claims.Subject}
		err = db.Create(&session).Error
	}
	if err != nil {
		api.Internal(w, "Failed to process AI chat", err)
		return
	}

	userTurn := chat.AIChatMessage{
		ChatID:    session.ID,
		Role:      chat.AIRoleUser,
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
	}

	// История целиком, без усечения — поведение оригинала.
	contents := make([]string, 0, len(session.Messages)+1)
	for _, m := range session.Messages {
		contents = append(contents, m.Content)
	}
	contents = append(contents, req.Message)

	reply, genErr := ai.Generate(r.Context(), services.PromptMentorChat, strings.Join(contents, "\n\n"))
	if genErr != nil {
		log.Error().Err(genErr).Msg("Отказ генеративного API, подставлен заготовленный ответ")
		reply = services.FallbackReply(genErr)
	}

	assistantTurn := chat.AIChatMessage{
		ChatID:    session.ID,
		Role:      chat.AIRoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&userTurn).Error; err != nil {
			return err
		}
		if err := tx.Create(&assistantTurn).Error; err != nil {
			return err
		}
		return tx.Model(&session).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		api.Internal(w, "Failed to process AI chat", err)
		return
	}

	session.Messages = append(session.Messages, userTurn, assistantTurn)

	api.OK(w, http.StatusOK, map[string]any{
		"response": reply,
		"messages": session.Messages,
	})
}
