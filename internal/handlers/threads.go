package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/stream"
)

// StreamService is the stream surface the handler exposes over HTTP.
type StreamService interface {
	Sync(ctx context.Context, threadID, pageCursor, deltaCursor string) stream.SyncResult
	RequestAbort(ctx context.Context, threadID string) (time.Time, error)
	BeginMessage(ctx context.Context, threadID, role string) (stream.Message, error)
	AppendDelta(ctx context.Context, messageID string, seq int32, content string) error
	Finalize(ctx context.Context, messageID, body string) (stream.Message, error)
	MarkAborted(ctx context.Context, messageID string) (stream.Message, error)
}

// ThreadHandler serves streaming reads, the abort control, and the engine's
// writer callbacks.
type ThreadHandler struct {
	streams StreamService
	logger  *slog.Logger
}

func NewThreadHandler(log *slog.Logger, streams StreamService) *ThreadHandler {
	return &ThreadHandler{
		streams: streams,
		logger:  log.With(slog.String("handler", "threads")),
	}
}

func (h *ThreadHandler) Register(e *echo.Echo) {
	e.GET("/threads/:id/sync", h.Sync)
	e.POST("/threads/:id/abort", h.Abort)

	// Writer callbacks from the conversation engine.
	e.POST("/threads/:id/messages", h.BeginMessage)
	e.POST("/messages/:id/deltas", h.AppendDelta)
	e.POST("/messages/:id/finalize", h.Finalize)
}

// Sync returns committed messages and live deltas. It always responds 200
// with a usable body; failures ride in the diagnostic field.
func (h *ThreadHandler) Sync(c echo.Context) error {
	threadID := strings.TrimSpace(c.Param("id"))
	if threadID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "thread id is required")
	}
	result := h.streams.Sync(
		c.Request().Context(),
		threadID,
		c.QueryParam("page_cursor"),
		c.QueryParam("delta_cursor"),
	)
	return c.JSON(http.StatusOK, result)
}

// Abort records the abort epoch for a thread. Generation in flight keeps
// running; its output is suppressed from reads.
func (h *ThreadHandler) Abort(c echo.Context) error {
	threadID := strings.TrimSpace(c.Param("id"))
	if threadID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "thread id is required")
	}
	abortedAt, err := h.streams.RequestAbort(c.Request().Context(), threadID)
	if err != nil {
		h.logger.Error("abort failed", slog.String("thread_id", threadID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record abort")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"thread_id":  threadID,
		"aborted_at": abortedAt.Format(time.RFC3339Nano),
	})
}

type beginMessageRequest struct {
	Role string `json:"role" validate:"required,oneof=user assistant"`
}

func (h *ThreadHandler) BeginMessage(c echo.Context) error {
	threadID := strings.TrimSpace(c.Param("id"))
	if threadID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "thread id is required")
	}
	var req beginMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msg, err := h.streams.BeginMessage(c.Request().Context(), threadID, req.Role)
	if err != nil {
		h.logger.Error("begin message failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to begin message")
	}
	return c.JSON(http.StatusCreated, msg)
}

type appendDeltaRequest struct {
	Seq     int32  `json:"seq" validate:"gte=0"`
	Content string `json:"content" validate:"required"`
}

func (h *ThreadHandler) AppendDelta(c echo.Context) error {
	messageID := strings.TrimSpace(c.Param("id"))
	if messageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id is required")
	}
	var req appendDeltaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.streams.AppendDelta(c.Request().Context(), messageID, req.Seq, req.Content); err != nil {
		h.logger.Error("append delta failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to append delta")
	}
	return c.NoContent(http.StatusNoContent)
}

type finalizeRequest struct {
	Body    string `json:"body"`
	Aborted bool   `json:"aborted"`
}

// Finalize closes a message. With aborted=true the message keeps whatever
// deltas arrived and is marked aborted; otherwise it is finished, with the
// delta concatenation standing in when the engine sends no body.
func (h *ThreadHandler) Finalize(c echo.Context) error {
	messageID := strings.TrimSpace(c.Param("id"))
	if messageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id is required")
	}
	var req finalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	var (
		msg stream.Message
		err error
	)
	if req.Aborted {
		msg, err = h.streams.MarkAborted(c.Request().Context(), messageID)
	} else {
		msg, err = h.streams.Finalize(c.Request().Context(), messageID, req.Body)
	}
	if err != nil {
		h.logger.Error("finalize failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to finalize message")
	}
	return c.JSON(http.StatusOK, msg)
}
