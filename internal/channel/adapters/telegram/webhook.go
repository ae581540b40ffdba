package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/channel/adapters"
)

// InboundProcessor consumes normalized inbound messages after the webhook
// has been acknowledged.
type InboundProcessor interface {
	Process(ctx context.Context, endpoint adapters.Endpoint, msg channel.InboundMessage, sender channel.Sender)
}

// WebhookHandler terminates Telegram webhook calls.
type WebhookHandler struct {
	adapter   *Adapter
	store     adapters.EndpointStore
	processor InboundProcessor
	logger    *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, adapter *Adapter, store adapters.EndpointStore, processor InboundProcessor) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		adapter:   adapter,
		store:     store,
		processor: processor,
		logger:    log.With(slog.String("handler", "telegram_webhook")),
	}
}

// Handle accepts one Telegram update. The webhook is acknowledged before any
// substantive work: Telegram retries slow or failed deliveries, and the
// pipeline's latency (generation, media) must not show up here.
func (h *WebhookHandler) Handle(c echo.Context) error {
	secret := strings.TrimSpace(c.Request().Header.Get(secretTokenHeader))
	if secret == "" {
		// No credential at all: reject without detail, nothing was processed.
		return c.NoContent(http.StatusUnauthorized)
	}

	ctx := c.Request().Context()
	endpoint, err := h.store.BySecret(ctx, channel.PlatformTelegram.String(), secret)
	if err != nil {
		if errors.Is(err, adapters.ErrEndpointNotFound) {
			// A secret-shaped credential that matches no project is most
			// likely stale. Acknowledge so Telegram stops retrying, and
			// leave a trace for operators since the 200 hides it.
			h.logger.Warn("webhook secret matched no endpoint",
				slog.String("platform", "telegram"),
				slog.String("remote_ip", c.RealIP()),
			)
			return c.NoContent(http.StatusOK)
		}
		h.logger.Error("endpoint lookup failed", slog.Any("error", err))
		return c.NoContent(http.StatusInternalServerError)
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		h.logger.Warn("malformed telegram update", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}

	token := endpoint.Credential("bot_token")
	if token == "" {
		h.logger.Error("endpoint has no bot token", slog.String("endpoint_id", endpoint.ID))
		return c.NoContent(http.StatusOK)
	}

	msg, ok := h.adapter.normalizeUpdate(token, update)
	if !ok {
		return c.NoContent(http.StatusOK)
	}

	// Detach from the request before handing off; the response returns now.
	processCtx := context.WithoutCancel(ctx)
	go h.processor.Process(processCtx, endpoint, msg, h.adapter.Sender(token))

	return c.NoContent(http.StatusOK)
}
