package messages

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/controllers/authentication"
	"github.com/omxchavan/mentos-talk/models/chat"
	"github.com/omxchavan/mentos-talk/models/users"
	"github.com/omxchavan/mentos-talk/services"
)

// EventNewMessage — имя события нового сообщения в канале пары.
const EventNewMessage = "new-message"

// ListMessages — переписка с собеседником, старые первыми. Побочный
// эффект чтения: все непрочитанные сообщения, адресованные вызывающему,
// помечаются прочитанными. Повторный вызов ничего не меняет.
func ListMessages(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	me := claims.Subject

	partnerID := r.URL.Query().Get("partnerId")
	if partnerID == "" {
		api.Fail(w, http.StatusBadRequest, "partnerId is required")
		return
	}

	var list []chat.Message
	if err := db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			me, partnerID, partnerID, me).
		Order("timestamp ASC").
		Find(&list).Error; err != nil {
		api.Internal(w, "Failed to fetch messages", err)
		return
	}
	if list == nil {
		list = make([]chat.Message, 0)
	}

	// Пометка после выборки: в ответе сообщения ещё с прежним флагом,
	// как в оригинале.
	if err := db.Model(&chat.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read = ?", partnerID, me, false).
		Update("read", true).Error; err != nil {
		api.Internal(w, "Failed to fetch messages", err)
		return
	}

	api.OK(w, http.StatusOK, list)
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

// SendMessage создаёт сообщение с серверной меткой времени и публикует
// событие в канал пары. Отказ доставки события не ломает отправку:
// получатель увидит сообщение при следующей загрузке переписки.
func SendMessage(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity, notifier services.Notifier) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req sendMessageRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if req.ReceiverID == "" || req.Text == "" {
		api.Fail(w, http.StatusBadRequest, "receiverId and text are required")
		return
	}
	if len(req.Text) > chat.MaxMessageLength {
		api.Fail(w, http.StatusBadRequest, "Message text must be at most 2000 characters")
		return
	}

	msg := chat.Message{
		PublicID:   uuid.NewString(),
		SenderID:   claims.Subject,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		Read:       false,
		Timestamp:  time.Now().UTC(),
	}
	if err := db.Create(&msg).Error; err != nil {
		api.Internal(w, "Failed to send message", err)
		return
	}

	channel := services.ChannelName(msg.SenderID, msg.ReceiverID)
	if err := notifier.Publish(r.Context(), channel, EventNewMessage, msg); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Не удалось опубликовать событие нового сообщения")
	}

	api.OK(w, http.StatusCreated, msg)
}

// conversationSummary — сводка переписки с одним собеседником.
type conversationSummary struct {
	ID               string    `json:"id"`
	ParticipantID    string    `json:"participantId"`
	ParticipantName  string    `json:"participantName"`
	ParticipantPhoto string    `json:"participantPhoto,omitempty"`
	LastMessage      string    `json:"lastMessage"`
	LastMessageTime  time.Time `json:"lastMessageTime"`
	UnreadCount      int       `json:"unreadCount"`
}

// ListConversations — по одной записи на собеседника: последнее
// сообщение пары и счётчик непрочитанных, адресованных вызывающему.
// Имена и фото собеседников подтягиваются вторым проходом.
func ListConversations(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	me := claims.Subject

	var list []chat.Message
	if err := db.
		Where("sender_id = ? OR receiver_id = ?", me, me).
		Order("timestamp DESC").
		Find(&list).Error; err != nil {
		api.Internal(w, "Failed to fetch conversations", err)
		return
	}

	order := make([]string, 0)
	byPartner := make(map[string]*conversationSummary)
	for _, msg := range list {
		partner := msg.ReceiverID
		if partner == me {
			partner = msg.SenderID
		}

		conv, ok := byPartner[partner]
		if !ok {
			// Сообщения отсортированы по убыванию времени: первое
			// встреченное и есть последнее в паре.
			conv = &conversationSummary{
				ID:              partner,
				ParticipantID:   partner,
				LastMessage:     msg.Text,
				LastMessageTime: msg.Timestamp,
			}
			byPartner[partner] = conv
			order = append(order, partner)
		}

		if msg.ReceiverID == me && !msg.Read {
			conv.UnreadCount++
		}
	}

	if len(order) > 0 {
		var partners []users.User
		if err := db.Where("clerk_id IN ?", order).Find(&partners).Error; err != nil {
			api.Internal(w, "Failed to fetch conversations", err)
			return
		}
		byClerkID := make(map[string]users.User, len(partners))
		for _, p := range partners {
			byClerkID[p.ClerkID] = p
		}
		for partner, conv := range byPartner {
			if u, ok := byClerkID[partner]; ok {
				conv.ParticipantName = u.Name
				conv.ParticipantPhoto = u.ProfilePhoto
			} else {
				conv.ParticipantName = "User"
			}
		}
	}

	result := make([]conversationSummary, 0, len(order))
	for _, partner := range order {
		result = append(result, *byPartner[partner])
	}

	api.OK(w, http.StatusOK, result)
}
