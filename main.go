package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/config"
	"github.com/omxchavan/mentos-talk/controllers/aichat"
	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/controllers/authentication"
	"github.com/omxchavan/mentos-talk/controllers/mentors"
	"github.com/omxchavan/mentos-talk/controllers/messages"
	"github.com/omxchavan/mentos-talk/controllers/realtime"
	"github.com/omxchavan/mentos-talk/controllers/reviews"
	"github.com/omxchavan/mentos-talk/controllers/usersControl"
	"github.com/omxchavan/mentos-talk/models/chat"
	"github.com/omxchavan/mentos-talk/models/users"
	"github.com/omxchavan/mentos-talk/services"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации базы данных")
	}

	// Миграция схемы
	err = db.AutoMigrate(
		&users.User{},
		&users.MentorProfile{},
		&users.ExpertiseTag{},
		&users.Review{},
		&chat.Message{},
		&chat.AIChat{},
		&chat.AIChatMessage{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка миграции базы данных")
	}
	log.Info().Msg("Подключение к базе данных успешно")

	identity := authentication.New(cfg)
	oauth := authentication.NewOAuth(cfg, identity, db)
	ai := services.NewAIClient(cfg.AI)
	if cfg.AI.APIKey == "" {
		log.Warn().Msg("AI_API_KEY не задан: AI-функции будут отвечать заготовленными текстами")
	}

	notifier := buildNotifier(cfg)

	router := buildRouter(db, identity, oauth, ai, notifier)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(router)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка запуска сервера")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Остановка сервера")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки сервера")
	}
}

// buildNotifier выбирает реализацию доставки: внешний pub/sub сервис,
// Redis или внутрипроцессная для локальной разработки.
func buildNotifier(cfg *config.Config) services.Notifier {
	switch {
	case cfg.Pusher.AppID != "" && cfg.Pusher.Key != "" && cfg.Pusher.Secret != "":
		log.Info().Str("cluster", cfg.Pusher.Cluster).Msg("Доставка событий: Pusher")
		return services.NewPusherNotifier(cfg.Pusher)
	case cfg.Redis.Addr != "":
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Доставка событий: Redis")
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return services.NewRedisNotifier(client, cfg.Pusher.Key, cfg.Pusher.Secret)
	default:
		log.Warn().Msg("Брокер не настроен: события доставляются только внутри процесса")
		return services.NewMemoryNotifier(cfg.Pusher.Key, cfg.Pusher.Secret)
	}
}

func buildRouter(db *gorm.DB, identity *authentication.Identity, oauth *authentication.OAuth, ai *services.AIClient, notifier services.Notifier) *mux.Router {
	r := mux.NewRouter()
	r.Use(api.LoggingMiddleware)
	r.Use(api.RecoveryMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		api.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Вход через внешний провайдер идентификации
	r.HandleFunc("/login", oauth.Login).Methods("GET")
	r.HandleFunc("/callback/identity", oauth.Callback).Methods("GET")
	r.HandleFunc("/logout", oauth.Logout).Methods("POST")

	// Пользователи
	r.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		usersControl.GetUsers(w, r, db)
	}).Methods("GET")
	r.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		usersControl.CreateUser(w, r, db)
	}).Methods("POST")
	r.HandleFunc("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		usersControl.GetUserByID(w, r, db)
	}).Methods("GET")
	r.HandleFunc("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		usersControl.UpdateUser(w, r, db)
	}).Methods("PATCH")

	// Профили наставников
	r.HandleFunc("/api/mentors", func(w http.ResponseWriter, r *http.Request) {
		mentors.ListMentors(w, r, db)
	}).Methods("GET")
	r.HandleFunc("/api/mentors", func(w http.ResponseWriter, r *http.Request) {
		mentors.CreateMentorProfile(w, r, db)
	}).Methods("POST")
	r.HandleFunc("/api/mentors/{id}", func(w http.ResponseWriter, r *http.Request) {
		mentors.GetMentor(w, r, db)
	}).Methods("GET")
	r.HandleFunc("/api/mentors/{id}", func(w http.ResponseWriter, r *http.Request) {
		mentors.UpdateMentor(w, r, db)
	}).Methods("PATCH")

	// Отзывы
	r.HandleFunc("/api/reviews", func(w http.ResponseWriter, r *http.Request) {
		reviews.ListReviews(w, r, db)
	}).Methods("GET")
	r.HandleFunc("/api/reviews", func(w http.ResponseWriter, r *http.Request) {
		reviews.CreateReview(w, r, db, identity)
	}).Methods("POST")

	// Личные сообщения
	r.HandleFunc("/api/messages/conversations", func(w http.ResponseWriter, r *http.Request) {
		messages.ListConversations(w, r, db, identity)
	}).Methods("GET")
	r.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		messages.ListMessages(w, r, db, identity)
	}).Methods("GET")
	r.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		messages.SendMessage(w, r, db, identity, notifier)
	}).Methods("POST")

	// AI-наставник
	r.HandleFunc("/api/ai-chat", func(w http.ResponseWriter, r *http.Request) {
		aichat.GetHistory(w, r, db, identity)
	}).Methods("GET")
	r.HandleFunc("/api/ai-chat", func(w http.ResponseWriter, r *http.Request) {
		aichat.SendTurn(w, r, db, identity, ai)
	}).Methods("POST")
	r.HandleFunc("/api/recommend-mentor", func(w http.ResponseWriter, r *http.Request) {
		aichat.RecommendMentors(w, r, db, identity, ai)
	}).Methods("POST")
	r.HandleFunc("/api/summarize", func(w http.ResponseWriter, r *http.Request) {
		aichat.SummarizeIssue(w, r, identity, ai)
	}).Methods("POST")
	r.HandleFunc("/api/action-plan", func(w http.ResponseWriter, r *http.Request) {
		aichat.GenerateActionPlan(w, r, identity, ai)
	}).Methods("POST")

	// Реальное время
	r.HandleFunc("/api/pusher/auth", func(w http.ResponseWriter, r *http.Request) {
		realtime.AuthorizeChannel(w, r, identity, notifier)
	}).Methods("POST")
	r.HandleFunc("/api/realtime/stream", func(w http.ResponseWriter, r *http.Request) {
		realtime.StreamChannel(w, r, identity, notifier)
	}).Methods("GET")

	return r
}
