package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/damsblt/helvetiforma-sub002/internal/dto"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/service"
)

type PurchaseHandler struct {
	purchaseRecorder  service.PurchaseRecorder
	enrollmentService service.EnrollmentService
	contentService    service.ContentService
}

func NewPurchaseHandler(
	purchaseRecorder service.PurchaseRecorder,
	enrollmentService service.EnrollmentService,
	contentService service.ContentService,
) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseRecorder:  purchaseRecorder,
		enrollmentService: enrollmentService,
		contentService:    contentService,
	}
}

func (h *PurchaseHandler) RecordArticlePurchase(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ArticlePurchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	orderID, err := h.purchaseRecorder.RecordPurchase(ctx, &service.RecordPurchaseInput{
		ContentItemID:    req.ContentItemID,
		PrincipalID:      req.PrincipalID,
		Amount:           req.Amount,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.ArticlePurchaseResponse{OrderID: orderID})
}

func (h *PurchaseHandler) RecordCourseEnrollment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CourseEnrollmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.enrollmentService.Enroll(ctx, &service.EnrollInput{
		CourseID:         req.CourseID,
		UserIdentifier:   req.UserIdentifier,
		PaymentStatus:    req.PaymentStatus,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// PaymentCallback is the payment processor's completion webhook. Course
// payments go to the enrollment synchronizer, everything else to the
// purchase recorder; redeliveries are expected and safe.
func (h *PurchaseHandler) PaymentCallback(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	courseID := req.CourseID
	if courseID == "" && req.ContentItemID != "" {
		item, err := h.contentService.FindByID(ctx, req.ContentItemID)
		if err != nil {
			return err
		}
		if item.Kind == model.KindCourse {
			courseID = item.ID
		}
	}

	if courseID != "" {
		result, err := h.enrollmentService.Enroll(ctx, &service.EnrollInput{
			CourseID:         courseID,
			UserIdentifier:   req.PrincipalID,
			PaymentStatus:    "paid",
			PaymentReference: req.PaymentReference,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, result)
	}

	orderID, err := h.purchaseRecorder.RecordPurchase(ctx, &service.RecordPurchaseInput{
		ContentItemID:    req.ContentItemID,
		PrincipalID:      req.PrincipalID,
		Amount:           req.Amount,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.ArticlePurchaseResponse{OrderID: orderID})
}
