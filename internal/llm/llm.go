// Package llm talks to an OpenAI-compatible service that turns a completed
// assessment into a study course.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces a course for a completed assessment. The returned
// document is opaque to the caller.
type Generator interface {
	GenerateCourse(ctx context.Context, p model.CoursePayload) (json.RawMessage, error)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new course-generation client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Transport: &retryAfterTransport{base: http.DefaultTransport}}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping checks that the service is reachable by listing its models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return mapError(err, 0)
	}
	return nil
}

// GenerateCourse sends a single course request. Wrap the client with
// WithRetry to survive transient failures.
func (c *Client) GenerateCourse(ctx context.Context, p model.CoursePayload) (json.RawMessage, error) {
	prompt, err := prompts.BuildCoursePrompt(p)
	if err != nil {
		return nil, fmt.Errorf("build course prompt: %w", err)
	}

	var retryAfter time.Duration
	ctx = context.WithValue(ctx, retryAfterKey{}, &retryAfter)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, mapError(err, retryAfter)
	}

	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: errors.New("no choices")}
	}

	choice := resp.Choices[0]
	raw := json.RawMessage(choice.Message.Content)
	slog.Debug("course response", "model", resp.Model, "finish_reason", choice.FinishReason, "bytes", len(raw))

	if choice.FinishReason == openai.FinishReasonLength {
		return nil, &ErrInvalidResponse{Content: raw, Err: errors.New("response truncated")}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ErrInvalidResponse{Content: raw, Err: err}
	}
	if obj == nil {
		return nil, &ErrInvalidResponse{Content: raw, Err: errors.New("not a JSON object")}
	}
	return raw, nil
}

// mapError sorts a client error by the HTTP status the service answered
// with. Errors without a status are treated as the service being unavailable.
func mapError(err error, retryAfter time.Duration) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{RetryAfter: retryAfter, Err: err}
	case status >= 400 && status < 500:
		return &ErrBadRequest{StatusCode: status, Err: err}
	default:
		return &ErrProviderUnavailable{Err: err}
	}
}

type retryAfterKey struct{}

// retryAfterTransport copies the Retry-After header of a 429 answer into the
// *time.Duration stored under retryAfterKey in the request context.
type retryAfterTransport struct {
	base http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if dst, ok := req.Context().Value(retryAfterKey{}).(*time.Duration); ok {
		*dst = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return resp, nil
}

// parseRetryAfter reads a Retry-After value given either in seconds or as an
// HTTP date. It returns 0 for missing, malformed or past values.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
