package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/handler"
	"github.com/damsblt/helvetiforma-sub002/internal/service"
)

type Server struct {
	echo            *echo.Echo
	logger          *slog.Logger
	authHandler     *handler.AuthHandler
	accessHandler   *handler.AccessHandler
	purchaseHandler *handler.PurchaseHandler
	contentHandler  *handler.ContentHandler
}

func NewServer(
	logger *slog.Logger,
	identity service.IdentityResolver,
	entitlementService service.EntitlementService,
	purchaseRecorder service.PurchaseRecorder,
	enrollmentService service.EnrollmentService,
	contentService service.ContentService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:            e,
		logger:          logger,
		authHandler:     handler.NewAuthHandler(identity),
		accessHandler:   handler.NewAccessHandler(contentService, entitlementService, identity),
		purchaseHandler: handler.NewPurchaseHandler(purchaseRecorder, enrollmentService, contentService),
		contentHandler:  handler.NewContentHandler(contentService),
	}

	e.HTTPErrorHandler = s.handleError
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/auth/login", s.authHandler.Login)
	api.GET("/access/check", s.accessHandler.CheckAccess)
	api.POST("/content", s.contentHandler.UpsertContent)

	purchases := api.Group("/purchases")
	purchases.POST("/articles", s.purchaseHandler.RecordArticlePurchase)
	purchases.POST("/courses", s.purchaseHandler.RecordCourseEnrollment)

	// -------- payment processor callbacks --------
	api.POST("/payments/webhook", s.purchaseHandler.PaymentCallback)
}

// handleError maps the error taxonomy to status codes in one place. Backend
// error detail stays in the log; callers only ever see the coarse category.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal error"

	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
	case errors.Is(err, apperr.ErrInvalidInput):
		code, message = http.StatusBadRequest, "invalid request"
	case errors.Is(err, apperr.ErrInvalidCredentials):
		code, message = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, apperr.ErrNotFound):
		code, message = http.StatusNotFound, "not found"
	}

	s.logger.Error("request failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"status", code,
		"error", err,
	)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": message})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
