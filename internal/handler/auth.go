package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/dto"
	"github.com/damsblt/helvetiforma-sub002/internal/service"
)

type AuthHandler struct {
	identity service.IdentityResolver
}

func NewAuthHandler(identity service.IdentityResolver) *AuthHandler {
	return &AuthHandler{
		identity: identity,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	principal, err := h.identity.Resolve(ctx, req.Identifier, req.Secret)
	if errors.Is(err, apperr.ErrInvalidInput) {
		return err
	}
	if err != nil {
		// one message for wrong password, unknown user and unreachable
		// backend alike; the internal error keeps the real reason for logs
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials").SetInternal(err)
	}

	return c.JSON(http.StatusOK, &dto.LoginResponse{Principal: principal})
}
