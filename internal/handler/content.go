package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/damsblt/helvetiforma-sub002/internal/service"
)

type ContentHandler struct {
	contentService service.ContentService
}

func NewContentHandler(contentService service.ContentService) *ContentHandler {
	return &ContentHandler{
		contentService: contentService,
	}
}

// UpsertContent takes a raw content-backend payload, runs it through the
// boundary normalization and stores the canonical item in the catalog.
func (h *ContentHandler) UpsertContent(c echo.Context) error {
	ctx := c.Request().Context()

	var raw map[string]any
	if err := c.Bind(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	item, err := h.contentService.NormalizeAndUpsert(ctx, raw)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, item)
}
