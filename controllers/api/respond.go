// Package api — единый конверт ответов {success, data | error} и
// соответствие ошибок HTTP-статусам: 400 невалидный ввод (включая
// повторный отзыв), 401 нет идентичности, 404 не найдено, 500 прочее.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Response — конверт всех ответов API.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK пишет успешный ответ с данными.
func OK(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		log.Error().Err(err).Msg("Ошибка записи ответа")
	}
}

// Fail пишет ответ с ошибкой. Текст виден клиенту, поэтому сюда не
// попадают внутренние детали.
func Fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Success: false, Error: msg}); err != nil {
		log.Error().Err(err).Msg("Ошибка записи ответа")
	}
}

// Internal логирует исходную ошибку на сервере и отдаёт клиенту общий
// текст с кодом 500.
func Internal(w http.ResponseWriter, msg string, err error) {
	log.Error().Err(err).Msg(msg)
	Fail(w, http.StatusInternalServerError, msg)
}

// Decode разбирает JSON-тело запроса в dst.
func Decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
