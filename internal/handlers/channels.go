package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/channel"
)

// ChannelHandler serves channel registry reads and lifecycle operations.
type ChannelHandler struct {
	channels *channel.Service
	logger   *slog.Logger
}

func NewChannelHandler(log *slog.Logger, channels *channel.Service) *ChannelHandler {
	return &ChannelHandler{
		channels: channels,
		logger:   log.With(slog.String("handler", "channels")),
	}
}

func (h *ChannelHandler) Register(e *echo.Echo) {
	e.GET("/channels", h.List)
	e.GET("/channels/:id", h.Get)
	e.DELETE("/channels/:id", h.Deactivate)
}

func (h *ChannelHandler) List(c echo.Context) error {
	projectID := strings.TrimSpace(c.QueryParam("project_id"))
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id is required")
	}
	channels, err := h.channels.ListByProject(c.Request().Context(), projectID)
	if err != nil {
		h.logger.Error("list channels failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list channels")
	}
	return c.JSON(http.StatusOK, map[string]any{"channels": channels})
}

func (h *ChannelHandler) Get(c echo.Context) error {
	ch, err := h.channels.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		}
		h.logger.Error("get channel failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load channel")
	}
	return c.JSON(http.StatusOK, ch)
}

// Deactivate retires a channel. Channels are never deleted; the row stays
// for audit and re-pairing history.
func (h *ChannelHandler) Deactivate(c echo.Context) error {
	if err := h.channels.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, channel.ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		}
		h.logger.Error("deactivate channel failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to deactivate channel")
	}
	return c.NoContent(http.StatusNoContent)
}
