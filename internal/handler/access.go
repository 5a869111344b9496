package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/dto"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/service"
)

type AccessHandler struct {
	contentService     service.ContentService
	entitlementService service.EntitlementService
	identity           service.IdentityResolver
}

func NewAccessHandler(
	contentService service.ContentService,
	entitlementService service.EntitlementService,
	identity service.IdentityResolver,
) *AccessHandler {
	return &AccessHandler{
		contentService:     contentService,
		entitlementService: entitlementService,
		identity:           identity,
	}
}

func (h *AccessHandler) CheckAccess(c echo.Context) error {
	ctx := c.Request().Context()

	contentID := c.QueryParam("content_id")
	if contentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing content_id")
	}

	item, err := h.contentService.FindByID(ctx, contentID)
	if err != nil {
		return err
	}

	var principal *model.Principal
	if principalID := c.QueryParam("principal_id"); principalID != "" {
		principal, err = h.identity.PrincipalByID(ctx, principalID)
		if errors.Is(err, apperr.ErrNotFound) {
			// an unknown principal id checks like an anonymous visitor
			principal = nil
		} else if err != nil {
			return err
		}
	}

	allowed, err := h.entitlementService.CanView(ctx, principal, item)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.AccessResponse{Allowed: allowed})
}
