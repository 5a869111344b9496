package dto

import (
	"github.com/shopspring/decimal"

	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type LoginResponse struct {
	Principal *model.Principal `json:"principal"`
}

type AccessResponse struct {
	Allowed bool `json:"allowed"`
}

type ArticlePurchaseRequest struct {
	ContentItemID    string          `json:"content_item_id"`
	PrincipalID      string          `json:"principal_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"payment_reference"`
}

type ArticlePurchaseResponse struct {
	OrderID string `json:"order_id"`
}

type CourseEnrollmentRequest struct {
	CourseID         string `json:"course_id"`
	UserIdentifier   string `json:"user_identifier"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference"`
}

// PaymentCallbackRequest is the payment processor's completion callback,
// covering both article and course purchases.
type PaymentCallbackRequest struct {
	ContentItemID    string          `json:"content_item_id"`
	CourseID         string          `json:"course_id"`
	PrincipalID      string          `json:"principal_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"payment_reference"`
}
