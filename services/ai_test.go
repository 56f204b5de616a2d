package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omxchavan/mentos-talk/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *AIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewAIClient(config.AIConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Model:     "test-model",
		MaxTokens: 128,
	})
	t.Cleanup(c.client.CloseIdleConnections)
	return c
}

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := chatCompletionResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatCompletionMessage `json:"message"`
		}{Message: chatCompletionMessage{Role: "assistant", Content: content}})
		json.NewEncoder(w).Encode(resp)
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, completionHandler(t, "hello there"))

	got, err := c.Generate(context.Background(), PromptMentorChat, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", got)
}

func TestGenerateWithoutKey(t *testing.T) {
	c := NewAIClient(config.AIConfig{BaseURL: "http://unused", Model: "m", MaxTokens: 1})

	_, err := c.Generate(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := c.Generate(context.Background(), "s", "u")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestExtractTagsStructured(t *testing.T) {
	for _, content := range []string{
		`["Go", "Backend", "Databases"]`,
		`{"tags": ["Go", "Backend", "Databases"]}`,
	} {
		c := newTestClient(t, completionHandler(t, content))

		tags, bestEffort, err := c.ExtractTags(context.Background(), "become a backend developer")
		require.NoError(t, err)
		assert.False(t, bestEffort, content)
		assert.Equal(t, []string{"Go", "Backend", "Databases"}, tags)
	}
}

func TestExtractTagsEmbeddedArrayFallback(t *testing.T) {
	c := newTestClient(t, completionHandler(t, "Sure! Here are the tags: [\"React\", \"Frontend\"] hope that helps"))

	tags, bestEffort, err := c.ExtractTags(context.Background(), "learn react")
	require.NoError(t, err)
	assert.True(t, bestEffort)
	assert.Equal(t, []string{"React", "Frontend"}, tags)
}

func TestExtractTagsCommaFallback(t *testing.T) {
	c := newTestClient(t, completionHandler(t, "React, Frontend, CSS"))

	tags, bestEffort, err := c.ExtractTags(context.Background(), "learn react")
	require.NoError(t, err)
	assert.True(t, bestEffort)
	assert.Equal(t, []string{"React", "Frontend", "CSS"}, tags)
}

func TestFallbackReply(t *testing.T) {
	assert.Equal(t, FallbackRateLimit, FallbackReply(&APIError{Status: http.StatusTooManyRequests}))
	assert.Equal(t, FallbackRateLimit, FallbackReply(&APIError{Status: http.StatusBadRequest, Body: "quota exhausted"}))
	assert.Equal(t, FallbackGeneric, FallbackReply(&APIError{Status: http.StatusInternalServerError}))
	assert.Equal(t, FallbackGeneric, FallbackReply(fmt.Errorf("connection refused")))
	assert.Equal(t, FallbackGeneric, FallbackReply(ErrNotConfigured))
}
