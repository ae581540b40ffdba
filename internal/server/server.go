// Package server assembles the HTTP surface: middleware, auth boundary, and
// route registration.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/relayhq/relay/internal/auth"
	"github.com/relayhq/relay/internal/channel/adapters/telegram"
	"github.com/relayhq/relay/internal/channel/adapters/whatsapp"
	"github.com/relayhq/relay/internal/handlers"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// publicPath reports whether a request path bypasses JWT auth. Webhooks
// authenticate with platform credentials instead; ping and health are open.
func publicPath(path string) bool {
	if path == "/ping" || path == "/health" {
		return true
	}
	return strings.HasSuffix(path, "/webhook") && strings.HasPrefix(path, "/channels/")
}

type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(
	log *slog.Logger,
	addr string,
	jwtSecret string,
	pingHandler *handlers.PingHandler,
	threadHandler *handlers.ThreadHandler,
	pairingHandler *handlers.PairingHandler,
	channelHandler *handlers.ChannelHandler,
	telegramWebhook *telegram.WebhookHandler,
	whatsappWebhook *whatsapp.WebhookHandler,
) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
				log.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return publicPath(c.Request().URL.Path)
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if threadHandler != nil {
		threadHandler.Register(e)
	}
	if pairingHandler != nil {
		pairingHandler.Register(e)
	}
	if channelHandler != nil {
		channelHandler.Register(e)
	}
	if telegramWebhook != nil {
		e.POST("/channels/telegram/webhook", telegramWebhook.Handle)
	}
	if whatsappWebhook != nil {
		e.GET("/channels/whatsapp/webhook", whatsappWebhook.Verify)
		e.POST("/channels/whatsapp/webhook", whatsappWebhook.Receive)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the assembled routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
