package mentors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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
	require.NoError(t, db.AutoMigrate(&users.User{}, &users.MentorProfile{}, &users.ExpertiseTag{}))
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

func seedMentor(t *testing.T, db *gorm.DB, name string, rating float64, tags ...string) *users.MentorProfile {
	t.Helper()

	user := users.User{ClerkID: "user_" + strings.ToLower(name), Role: users.RoleMentor, Name: name, Email: strings.ToLower(name) + "@example.com"}
	require.NoError(t, db.Create(&user).Error)

	profile := users.MentorProfile{
		UserID:       user.ID,
		Bio:          "Mentoring in " + strings.Join(tags, ", "),
		Experience:   5,
		Availability: "weekends",
		AvgRating:    rating,
		TotalRatings: 3,
	}
	for _, tag := range tags {
		profile.Expertise = append(profile.Expertise, users.ExpertiseTag{Name: tag})
	}
	require.NoError(t, db.Create(&profile).Error)

	// Spread creation times so the default recency sort is deterministic.
	time.Sleep(2 * time.Millisecond)
	return &profile
}

func listMentors(t *testing.T, db *gorm.DB, query string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	ListMentors(rec, httptest.NewRequest(http.MethodGet, "/api/mentors"+query, nil), db)
	require.Equal(t, http.StatusOK, rec.Code)

	var cards []map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &cards))
	return rec, cards
}

func cardNames(cards []map[string]any) []string {
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		names = append(names, c["name"].(string))
	}
	return names
}

func TestListMentorsFilters(t *testing.T) {
	db := setupDB(t)
	seedMentor(t, db, "Alice", 4.8, "Go", "Backend")
	seedMentor(t, db, "Bob", 3.2, "React", "Frontend")
	seedMentor(t, db, "Carol", 4.1, "Go", "Databases")

	_, cards := listMentors(t, db, "?expertise=go")
	assert.ElementsMatch(t, []string{"Alice", "Carol"}, cardNames(cards))

	_, cards = listMentors(t, db, "?minRating=4")
	assert.ElementsMatch(t, []string{"Alice", "Carol"}, cardNames(cards))

	_, cards = listMentors(t, db, "?expertise=go&minRating=4.5")
	assert.Equal(t, []string{"Alice"}, cardNames(cards))
}

func TestListMentorsSortByRating(t *testing.T) {
	db := setupDB(t)
	seedMentor(t, db, "Alice", 3.0, "Go")
	seedMentor(t, db, "Bob", 4.9, "Go")
	seedMentor(t, db, "Carol", 4.1, "Go")

	_, cards := listMentors(t, db, "?sortBy=rating")
	assert.Equal(t, []string{"Bob", "Carol", "Alice"}, cardNames(cards))
}

func TestListMentorsEmptyResultIsEmptyArray(t *testing.T) {
	db := setupDB(t)
	seedMentor(t, db, "Alice", 4.8, "Go")

	rec, cards := listMentors(t, db, "?expertise=cooking")
	assert.Empty(t, cards)
	// An empty match is still a success with a JSON array, never null.
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListMentorsSearchAppliesAfterLimit(t *testing.T) {
	db := setupDB(t)
	for i := 0; i < 5; i++ {
		seedMentor(t, db, fmt.Sprintf("Mentor%d", i), 4.0, "Go")
	}
	seedMentor(t, db, "Zara", 4.0, "Go")

	// Page is capped at 3 most recent profiles first, then searched:
	// Zara is the newest so she survives, the Mentor* rows do not.
	_, cards := listMentors(t, db, "?limit=3&search=zara")
	assert.Equal(t, []string{"Zara"}, cardNames(cards))

	// A match outside the limited page is not found.
	_, cards = listMentors(t, db, "?limit=3&search=mentor0")
	assert.Empty(t, cards)
}

func TestListMentorsInvalidMinRating(t *testing.T) {
	db := setupDB(t)

	rec := httptest.NewRecorder()
	ListMentors(rec, httptest.NewRequest(http.MethodGet, "/api/mentors?minRating=lots", nil), db)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMentorProfileIsIdempotent(t *testing.T) {
	db := setupDB(t)
	user := users.User{ClerkID: "user_alice", Role: users.RoleMentor, Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)

	payload := map[string]any{
		"userId":       user.ID,
		"bio":          "I teach Go",
		"expertise":    []string{"Go", "Backend"},
		"experience":   7,
		"availability": "evenings",
	}
	raw, _ := json.Marshal(payload)

	rec := httptest.NewRecorder()
	CreateMentorProfile(rec, httptest.NewRequest(http.MethodPost, "/api/mentors", bytes.NewReader(raw)), db)
	require.Equal(t, http.StatusCreated, rec.Code)

	var first map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &first))

	rec = httptest.NewRecorder()
	CreateMentorProfile(rec, httptest.NewRequest(http.MethodPost, "/api/mentors", bytes.NewReader(raw)), db)
	require.Equal(t, http.StatusOK, rec.Code)

	var second map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &second))
	assert.Equal(t, first["id"], second["id"])

	var count int64
	require.NoError(t, db.Model(&users.MentorProfile{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateMentorProfileValidation(t *testing.T) {
	db := setupDB(t)

	raw, _ := json.Marshal(map[string]any{"userId": 1, "bio": ""})
	rec := httptest.NewRecorder()
	CreateMentorProfile(rec, httptest.NewRequest(http.MethodPost, "/api/mentors", bytes.NewReader(raw)), db)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	raw, _ = json.Marshal(map[string]any{"userId": 1, "bio": strings.Repeat("x", 1001), "availability": "anytime"})
	rec = httptest.NewRecorder()
	CreateMentorProfile(rec, httptest.NewRequest(http.MethodPost, "/api/mentors", bytes.NewReader(raw)), db)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMentor(t *testing.T) {
	db := setupDB(t)
	profile := seedMentor(t, db, "Alice", 4.8, "Go", "Backend")

	req := httptest.NewRequest(http.MethodGet, "/api/mentors/1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(profile.ID)})

	rec := httptest.NewRecorder()
	GetMentor(rec, req, db)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "Alice", got["name"])
	assert.Equal(t, "user_alice", got["userId"])
	assert.ElementsMatch(t, []any{"Go", "Backend"}, got["expertise"])

	req = httptest.NewRequest(http.MethodGet, "/api/mentors/99", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rec = httptest.NewRecorder()
	GetMentor(rec, req, db)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateMentorReplacesExpertise(t *testing.T) {
	db := setupDB(t)
	profile := seedMentor(t, db, "Alice", 4.8, "Go", "Backend")

	raw, _ := json.Marshal(map[string]any{
		"bio":       "Now focusing on infra",
		"expertise": []string{"Kubernetes", "Terraform"},
	})
	req := httptest.NewRequest(http.MethodPatch, "/api/mentors/1", bytes.NewReader(raw))
	req = mux.SetURLVars(req, map[string]string{"id": fmt.Sprint(profile.ID)})

	rec := httptest.NewRecorder()
	UpdateMentor(rec, req, db)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "Now focusing on infra", got["bio"])
	assert.ElementsMatch(t, []any{"Kubernetes", "Terraform"}, got["expertise"])
	// Untouched fields are preserved.
	assert.Equal(t, "weekends", got["availability"])

	// The old tag set is gone, not merged.
	var tags int64
	require.NoError(t, db.Model(&users.ExpertiseTag{}).Where("mentor_profile_id = ?", profile.ID).Count(&tags).Error)
	assert.EqualValues(t, 2, tags)
}
