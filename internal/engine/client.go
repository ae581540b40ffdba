// Package engine is the HTTP client for the conversation engine, the
// external service that owns threads and runs generation.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Dispatcher schedules generation work. Dispatch is fire-and-forget: the
// engine acknowledges scheduling and the reply arrives through the stream.
type Dispatcher interface {
	Dispatch(ctx context.Context, input DispatchInput) error
}

// DispatchInput is one generation request.
type DispatchInput struct {
	ThreadID     string   `json:"threadId"`
	ProjectID    string   `json:"projectId"`
	ActorID      string   `json:"actorId"`
	PromptText   string   `json:"promptText"`
	MediaFileIDs []string `json:"mediaFileIds,omitempty"`
}

// Client talks to the conversation engine over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "engine")),
	}
}

// Dispatch schedules generation for a thread and returns once the engine has
// accepted the task. It never waits for generation itself.
func (c *Client) Dispatch(ctx context.Context, input DispatchInput) error {
	if input.ThreadID == "" {
		return fmt.Errorf("dispatch requires a thread id")
	}
	if err := c.post(ctx, "/v1/dispatch", input, nil); err != nil {
		return fmt.Errorf("dispatch generation: %w", err)
	}
	c.logger.Debug("generation dispatched",
		slog.String("thread_id", input.ThreadID),
		slog.Int("media_count", len(input.MediaFileIDs)),
	)
	return nil
}

type createThreadBody struct {
	ProjectID string `json:"projectId"`
}

type createThreadResponse struct {
	ThreadID string `json:"threadId"`
}

// CreateThread mints a native thread for a project.
func (c *Client) CreateThread(ctx context.Context, projectID string) (string, error) {
	var result createThreadResponse
	if err := c.post(ctx, "/v1/threads", createThreadBody{ProjectID: projectID}, &result); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if result.ThreadID == "" {
		return "", fmt.Errorf("engine returned empty thread id")
	}
	return result.ThreadID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call engine: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("engine %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}
