package authentication

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/config"
	apiresp "github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/models/users"
)

const oauthState = "mentos-talk"

// OAuth — вход через внешний провайдер идентификации. Endpoints задаются
// конфигурацией, сервис не привязан к конкретному провайдеру.
type OAuth struct {
	conf        *oauth2.Config
	userInfoURL string
	store       *sessions.CookieStore
	identity    *Identity
	db          *gorm.DB
}

func NewOAuth(cfg *config.Config, identity *Identity, db *gorm.DB) *OAuth {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 8,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.Identity.ClientID,
			ClientSecret: cfg.Identity.ClientSecret,
			RedirectURL:  cfg.Identity.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Identity.AuthURL,
				TokenURL: cfg.Identity.TokenURL,
			},
		},
		userInfoURL: cfg.Identity.UserInfoURL,
		store:       store,
		identity:    identity,
		db:          db,
	}
}

// Login перенаправляет на страницу входа провайдера.
func (o *OAuth) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, o.conf.AuthCodeURL(oauthState), http.StatusTemporaryRedirect)
}

// Callback обрабатывает возврат от провайдера: обмен кода на токен,
// запрос userinfo, идемпотентное создание пользователя по subject и
// выпуск сервисного токена.
func (o *OAuth) Callback(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("state") != oauthState {
		log.Warn().Msg("Неверный OAuth state")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := o.conf.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Error().Err(err).Msg("Ошибка обмена кода на токен")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	info, err := o.fetchUserInfo(r, token)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка запроса userinfo")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	// Создание идемпотентно: повторный вход возвращает существующий
	// аккаунт без изменений.
	var user users.User
	err = o.db.Where("clerk_id = ?", info.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = users.User{
			ClerkID:      info.Subject,
			Role:         users.RoleMentee, // роль уточняется при онбординге
			Name:         info.Name,
			Email:        info.Email,
			ProfilePhoto: info.Picture,
		}
		err = o.db.Create(&user).Error
	}
	if err != nil {
		apiresp.Internal(w, "Failed to sign in", err)
		return
	}

	serviceToken, err := o.identity.Issue(&user)
	if err != nil {
		apiresp.Internal(w, "Failed to sign in", err)
		return
	}

	session, _ := o.store.Get(r, "mentos-session")
	session.Values["clerk_id"] = user.ClerkID
	if err := session.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Ошибка сохранения сессии")
	}

	apiresp.OK(w, http.StatusOK, map[string]any{"token": serviceToken, "user": user})
}

// Logout сбрасывает сессию.
func (o *OAuth) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := o.store.Get(r, "mentos-session")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Ошибка сброса сессии")
	}

	apiresp.OK(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (o *OAuth) fetchUserInfo(r *http.Request, token *oauth2.Token) (*userInfo, error) {
	client := o.conf.Client(r.Context(), token)
	resp, err := client.Get(o.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	if info.Subject == "" {
		return nil, errors.New("userinfo without subject")
	}

	return &info, nil
}
