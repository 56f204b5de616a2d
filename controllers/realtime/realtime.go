package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/controllers/authentication"
	"github.com/omxchavan/mentos-talk/services"
)

// AuthorizeChannel — авторизация сокета в приватном канале пары.
// Вызывающий обязан быть одной из сторон канала. Формат ответа
// {"auth": "..."} задан клиентской библиотекой провайдера, конверт
// {success, ...} здесь не используется.
func AuthorizeChannel(w http.ResponseWriter, r *http.Request, auth *authentication.Identity, notifier services.Notifier) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseForm(); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	socketID := r.PostFormValue("socket_id")
	channel := r.PostFormValue("channel_name")
	if socketID == "" || channel == "" {
		api.Fail(w, http.StatusBadRequest, "socket_id and channel_name are required")
		return
	}

	if !services.IsChannelParticipant(channel, claims.Subject) {
		api.Fail(w, http.StatusForbidden, "Forbidden channel")
		return
	}

	token, err := notifier.Authorize(socketID, channel)
	if err != nil {
		api.Internal(w, "Failed to authorize channel", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"auth": token}); err != nil {
		log.Error().Err(err).Msg("Ошибка записи ответа авторизации канала")
	}
}

// StreamChannel — SSE-поток событий канала для реализаций с
// внутрипроцессной подпиской (Redis, память). Соединение живёт, пока
// клиент не отключится.
func StreamChannel(w http.ResponseWriter, r *http.Request, auth *authentication.Identity, notifier services.Notifier) {
	claims, err := auth.Validate(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		api.Fail(w, http.StatusBadRequest, "channel is required")
		return
	}
	if !services.IsChannelParticipant(channel, claims.Subject) {
		api.Fail(w, http.StatusForbidden, "Forbidden channel")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Fail(w, http.StatusInternalServerError, "Streaming is not supported")
		return
	}

	events, err := notifier.Subscribe(r.Context(), channel)
	if err != nil {
		api.Internal(w, "Failed to subscribe to channel", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}
