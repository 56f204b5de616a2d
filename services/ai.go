package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/omxchavan/mentos-talk/config"
)

// Системные промпты AI-наставника.
const (
	PromptMentorChat = `You are an expert mentor helping users with career growth, technical learning, and problem solving.
Give clear, actionable advice. Be concise but thorough. Focus on:
- Practical, step-by-step guidance
- Career development strategies
- Technical learning paths
- Skill growth recommendations
Always be encouraging and supportive while being realistic about challenges.`

	PromptRecommendMentor = `You are an AI assistant that analyzes user goals and extracts relevant skills and domains.
Given a user's goal or objective, extract the key technical skills, domains, and expertise areas that would be relevant.
Return ONLY a JSON array of strings representing expertise tags.
Example: For "I want to become a backend developer", return ["Node.js", "Backend", "API Development", "Databases", "Server-side Programming"]`

	PromptSummarize = `You are a professional assistant that summarizes user problems for mentor reference.
Given a user's issue or problem description, provide a concise 3-4 line summary that captures:
- The core problem
- Key context
- What help they're seeking
Be clear and professional.`

	PromptActionPlan = `You are a career mentor creating actionable learning plans.
Given a user's goal or conversation, create a structured action plan with:
1. Clear learning steps (numbered)
2. Recommended resources (courses, books, tools)
3. Realistic timeline suggestions
Be specific and practical. Focus on achievable milestones.`
)

// Заготовленные ответы на случай отказа внешнего API. Ошибка вызова
// поглощается: клиент получает success с одним из этих текстов.
const (
	FallbackRateLimit = "I apologize, but we've reached the API rate limit. Please try again in a few moments."
	FallbackGeneric   = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment."
)

// ErrNotConfigured — ключ API не задан; вызовы ведут себя как отказ.
var ErrNotConfigured = errors.New("AI API key is not configured")

// APIError — ответ внешнего API со статусом вне 2xx.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AI API returned status %d: %s", e.Status, e.Body)
}

// Структуры запроса и ответа chat/completions.
type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string                  `json:"model"`
	Messages       []chatCompletionMessage `json:"messages"`
	MaxTokens      int                     `json:"max_tokens"`
	ResponseFormat *responseFormat         `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
}

// AIClient — адаптер внешнего генеративного API. Один вызов на запрос,
// без повторов; история диалога передаётся целиком, без усечения по
// токенам (известное ограничение, унаследованное от оригинала).
type AIClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

func NewAIClient(cfg config.AIConfig) *AIClient {
	return &AIClient{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate выполняет один запрос к API: системный промпт плюс контент
// пользователя, ответ — текст первого choice.
func (c *AIClient) Generate(ctx context.Context, system, user string) (string, error) {
	return c.generate(ctx, system, user, nil)
}

func (c *AIClient) generate(ctx context.Context, system, user string, format *responseFormat) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	requestData := chatCompletionRequest{
		Model: c.model,
		Messages: []chatCompletionMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: format,
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var completionResp chatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return "", fmt.Errorf("failed to decode API response: %w", err)
	}

	if len(completionResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned by the API")
	}

	return completionResp.Choices[0].Message.Content, nil
}

var jsonArrayRe = regexp.MustCompile(`\[[\s\S]*\]`)

// ExtractTags извлекает теги экспертизы из цели пользователя. Сначала
// запрашивается структурированный JSON-вывод; если модель его не дала,
// остаются деградированные пути (regex по скобкам, затем разбиение по
// запятым) — тогда bestEffort=true и вызывающий может пометить результат
// как ненадёжный.
func (c *AIClient) ExtractTags(ctx context.Context, goal string) (tags []string, bestEffort bool, err error) {
	text, err := c.generate(ctx, PromptRecommendMentor, "User goal: "+goal, &responseFormat{Type: "json_object"})
	if err != nil {
		return nil, false, err
	}

	if tags, ok := parseTagsStrict(text); ok {
		return tags, false, nil
	}

	if match := jsonArrayRe.FindString(text); match != "" {
		var parsed []string
		if json.Unmarshal([]byte(match), &parsed) == nil && len(parsed) > 0 {
			return parsed, true, nil
		}
	}

	return splitTags(text), true, nil
}

// parseTagsStrict принимает либо чистый JSON-массив строк, либо объект с
// полем-массивом (режим json_object у некоторых провайдеров).
func parseTagsStrict(text string) ([]string, bool) {
	trimmed := strings.TrimSpace(text)

	var arr []string
	if json.Unmarshal([]byte(trimmed), &arr) == nil && len(arr) > 0 {
		return arr, true
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal([]byte(trimmed), &obj) == nil {
		for _, raw := range obj {
			if json.Unmarshal(raw, &arr) == nil && len(arr) > 0 {
				return arr, true
			}
		}
	}

	return nil, false
}

func splitTags(text string) []string {
	cleaned := strings.NewReplacer("[", "", "]", "", `"`, "").Replace(text)
	parts := strings.Split(cleaned, ",")

	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// FallbackReply выбирает заготовленный ответ по виду отказа: отдельный
// текст для превышения лимита, общий — для всего остального.
func FallbackReply(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests || strings.Contains(apiErr.Body, "quota") {
			return FallbackRateLimit
		}
	}
	return FallbackGeneric
}
