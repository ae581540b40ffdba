package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/channel/adapters"
)

// secretHeader carries the shared secret configured on the endpoint.
const secretHeader = "X-Webhook-Secret"

// InboundProcessor consumes normalized inbound messages after the webhook
// has been acknowledged.
type InboundProcessor interface {
	Process(ctx context.Context, endpoint adapters.Endpoint, msg channel.InboundMessage, sender channel.Sender)
}

// WebhookHandler terminates WhatsApp webhook calls: the GET registration
// handshake and POST deliveries.
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
		logger:    log.With(slog.String("handler", "whatsapp_webhook")),
	}
}

// Verify answers the registration handshake: echo hub.challenge when the
// verify token belongs to an endpoint, 403 otherwise.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")
	if mode != "subscribe" || token == "" {
		return c.NoContent(http.StatusForbidden)
	}
	_, err := h.store.ByVerifyToken(c.Request().Context(), channel.PlatformWhatsApp.String(), token)
	if err != nil {
		if !errors.Is(err, adapters.ErrEndpointNotFound) {
			h.logger.Error("verify token lookup failed", slog.Any("error", err))
		}
		return c.NoContent(http.StatusForbidden)
	}
	return c.String(http.StatusOK, challenge)
}

// Receive accepts one webhook delivery. Acknowledged before substantive
// work, same contract as the Telegram handler.
func (h *WebhookHandler) Receive(c echo.Context) error {
	secret := strings.TrimSpace(c.Request().Header.Get(secretHeader))
	if secret == "" {
		return c.NoContent(http.StatusUnauthorized)
	}

	ctx := c.Request().Context()
	endpoint, err := h.store.BySecret(ctx, channel.PlatformWhatsApp.String(), secret)
	if err != nil {
		if errors.Is(err, adapters.ErrEndpointNotFound) {
			h.logger.Warn("webhook secret matched no endpoint",
				slog.String("platform", "whatsapp"),
				slog.String("remote_ip", c.RealIP()),
			)
			return c.NoContent(http.StatusOK)
		}
		h.logger.Error("endpoint lookup failed", slog.Any("error", err))
		return c.NoContent(http.StatusInternalServerError)
	}

	var env envelope
	if err := c.Bind(&env); err != nil {
		h.logger.Warn("malformed whatsapp envelope", slog.Any("error", err))
		return c.NoContent(http.StatusOK)
	}

	accessToken := endpoint.Credential("access_token")
	phoneNumberID := endpoint.Credential("phone_number_id")
	if accessToken == "" || phoneNumberID == "" {
		h.logger.Error("endpoint missing whatsapp credentials", slog.String("endpoint_id", endpoint.ID))
		return c.NoContent(http.StatusOK)
	}

	messages := h.adapter.normalizeEnvelope(accessToken, env)
	if len(messages) == 0 {
		return c.NoContent(http.StatusOK)
	}

	processCtx := context.WithoutCancel(ctx)
	sender := h.adapter.Sender(accessToken, phoneNumberID)
	go func() {
		for _, msg := range messages {
			h.processor.Process(processCtx, endpoint, msg, sender)
		}
	}()

	return c.NoContent(http.StatusOK)
}
