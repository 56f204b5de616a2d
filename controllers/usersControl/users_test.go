package usersControl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omxchavan/mentos-talk/models/users"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&users.User{}))
	return db
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func postJSON(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(raw))
}

func TestCreateUserIsIdempotent(t *testing.T) {
	db := setupDB(t)

	payload := map[string]any{
		"clerkId": "user_abc",
		"role":    "mentee",
		"name":    "Alice",
		"email":   "alice@example.com",
	}

	rec := httptest.NewRecorder()
	CreateUser(rec, postJSON(t, payload), db)
	require.Equal(t, http.StatusCreated, rec.Code)

	var first users.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &first))

	// Second create with the same external id returns the same document
	// unchanged, even if other fields differ.
	payload["name"] = "Someone Else"
	rec = httptest.NewRecorder()
	CreateUser(rec, postJSON(t, payload), db)
	require.Equal(t, http.StatusOK, rec.Code)

	var second users.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice", second.Name)

	var count int64
	require.NoError(t, db.Model(&users.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateUserValidation(t *testing.T) {
	db := setupDB(t)

	rec := httptest.NewRecorder()
	CreateUser(rec, postJSON(t, map[string]any{"clerkId": "user_x", "role": "admin", "name": "X", "email": "x@x"}), db)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	CreateUser(rec, postJSON(t, map[string]any{"role": "mentee", "name": "X", "email": "x@x"}), db)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestGetUsersByClerkID(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&users.User{ClerkID: "user_abc", Role: "mentor", Name: "Bob", Email: "bob@example.com"}).Error)

	rec := httptest.NewRecorder()
	GetUsers(rec, httptest.NewRequest(http.MethodGet, "/api/users?clerkId=user_abc", nil), db)
	require.Equal(t, http.StatusOK, rec.Code)

	var got users.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "Bob", got.Name)

	rec = httptest.NewRecorder()
	GetUsers(rec, httptest.NewRequest(http.MethodGet, "/api/users?clerkId=user_nope", nil), db)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserPartialMerge(t *testing.T) {
	db := setupDB(t)
	user := users.User{ClerkID: "user_abc", Role: "mentee", Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)

	raw, _ := json.Marshal(map[string]any{"name": "Alice Updated"})
	req := httptest.NewRequest(http.MethodPatch, "/api/users/1", bytes.NewReader(raw))
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(user.ID)})

	rec := httptest.NewRecorder()
	UpdateUser(rec, req, db)
	require.Equal(t, http.StatusOK, rec.Code)

	var got users.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, "Alice Updated", got.Name)
	// Untouched fields keep their values.
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "mentee", got.Role)
}

func TestUpdateUserNotFound(t *testing.T) {
	db := setupDB(t)

	raw, _ := json.Marshal(map[string]any{"name": "ghost"})
	req := httptest.NewRequest(http.MethodPatch, "/api/users/99", bytes.NewReader(raw))
	req = mux.SetURLVars(req, map[string]string{"id": "99"})

	rec := httptest.NewRecorder()
	UpdateUser(rec, req, db)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
