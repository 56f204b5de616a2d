package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config — вся конфигурация сервиса. Значения читаются из переменных
// окружения, yaml-файл (если указан) имеет приоритет.
type Config struct {
	Addr          string        `yaml:"addr"`
	DatabaseURL   string        `yaml:"database_url"`
	JWTSecret     string        `yaml:"jwt_secret"`
	SessionSecret string        `yaml:"session_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`

	AI       AIConfig       `yaml:"ai"`
	Pusher   PusherConfig   `yaml:"pusher"`
	Redis    RedisConfig    `yaml:"redis"`
	Identity IdentityConfig `yaml:"identity"`
}

// AIConfig — настройки внешнего генеративного API. Пустой ключ не является
// ошибкой: AI-функции деградируют до заготовленных ответов.
type AIConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PusherConfig — учётные данные хостингового pub/sub сервиса.
type PusherConfig struct {
	AppID   string `yaml:"app_id"`
	Key     string `yaml:"key"`
	Secret  string `yaml:"secret"`
	Cluster string `yaml:"cluster"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IdentityConfig — внешний провайдер идентификации (OAuth2/OIDC).
type IdentityConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
}

// Load читает конфигурацию из окружения и, опционально, из yaml-файла.
// DATABASE_URL обязателен — без него сервис стартовать не может.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("ADDR", ":"+getEnv("PORT", "8080")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		SessionSecret: getEnv("SESSION_SECRET", "dev-session-secret"),
		TokenDuration: 24 * time.Hour,
		AI: AIConfig{
			APIKey:    os.Getenv("AI_API_KEY"),
			BaseURL:   getEnv("AI_BASE_URL", "https://api.aimlapi.com/chat/completions"),
			Model:     getEnv("AI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("AI_MAX_TOKENS", 1024),
		},
		Pusher: PusherConfig{
			AppID:   os.Getenv("PUSHER_APP_ID"),
			Key:     os.Getenv("PUSHER_KEY"),
			Secret:  os.Getenv("PUSHER_SECRET"),
			Cluster: getEnv("PUSHER_CLUSTER", "eu"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			ClientID:     os.Getenv("IDENTITY_CLIENT_ID"),
			ClientSecret: os.Getenv("IDENTITY_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("IDENTITY_REDIRECT_URL"),
			AuthURL:      os.Getenv("IDENTITY_AUTH_URL"),
			TokenURL:     os.Getenv("IDENTITY_TOKEN_URL"),
			UserInfoURL:  os.Getenv("IDENTITY_USERINFO_URL"),
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}
