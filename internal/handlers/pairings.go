package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/auth"
	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/pairing"
)

// PairingService is the pairing surface the handler exposes over HTTP.
type PairingService interface {
	Request(ctx context.Context, input pairing.RequestInput) (pairing.Request, error)
	Redeem(ctx context.Context, code, actingUserID string) (channel.Channel, error)
}

// PairingHandler serves pairing code issue and redemption.
type PairingHandler struct {
	pairings PairingService
	logger   *slog.Logger
}

func NewPairingHandler(log *slog.Logger, pairings PairingService) *PairingHandler {
	return &PairingHandler{
		pairings: pairings,
		logger:   log.With(slog.String("handler", "pairings")),
	}
}

func (h *PairingHandler) Register(e *echo.Echo) {
	e.POST("/pairings", h.Request)
	e.POST("/pairings/redeem", h.Redeem)
}

type requestPairingRequest struct {
	ProjectID      string `json:"project_id" validate:"required,uuid4"`
	Platform       string `json:"platform" validate:"required,oneof=telegram whatsapp web"`
	ExternalUserID string `json:"external_user_id" validate:"required"`
}

func (h *PairingHandler) Request(c echo.Context) error {
	var req requestPairingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	request, err := h.pairings.Request(c.Request().Context(), pairing.RequestInput{
		ProjectID:      req.ProjectID,
		Platform:       channel.Platform(req.Platform),
		ExternalUserID: req.ExternalUserID,
	})
	if err != nil {
		h.logger.Error("pairing request failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create pairing request")
	}
	return c.JSON(http.StatusCreated, request)
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,len=8"`
}

func (h *PairingHandler) Redeem(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req redeemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ch, err := h.pairings.Redeem(c.Request().Context(), req.Code, userID)
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrPairingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "pairing code not found")
		case errors.Is(err, pairing.ErrPairingExpired):
			return echo.NewHTTPError(http.StatusGone, "pairing code expired")
		case errors.Is(err, pairing.ErrUnauthenticated):
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		default:
			h.logger.Error("pairing redemption failed", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to redeem pairing code")
		}
	}
	return c.JSON(http.StatusOK, ch)
}
