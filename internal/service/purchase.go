package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/client"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/repository"
)

type RecordPurchaseInput struct {
	ContentItemID    string
	PrincipalID      string
	Amount           decimal.Decimal
	PaymentReference string
}

// PurchaseRecorder turns a successful payment into a durable, non-duplicated
// order record. Payment-callback retries are expected; repeated invocations
// with the same arguments yield the same order id.
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, input *RecordPurchaseInput) (string, error)
}

type purchaseRecorderImpl struct {
	contentRepo  repository.ContentRepository
	callbackRepo repository.CallbackEventRepository
	ledger       PurchaseLedger
	identity     IdentityResolver
	logger       *slog.Logger
}

func NewPurchaseRecorder(
	contentRepo repository.ContentRepository,
	callbackRepo repository.CallbackEventRepository,
	ledger PurchaseLedger,
	identity IdentityResolver,
	logger *slog.Logger,
) PurchaseRecorder {
	return &purchaseRecorderImpl{
		contentRepo:  contentRepo,
		callbackRepo: callbackRepo,
		ledger:       ledger,
		identity:     identity,
		logger:       logger,
	}
}

func (s *purchaseRecorderImpl) RecordPurchase(ctx context.Context, input *RecordPurchaseInput) (string, error) {
	if input.ContentItemID == "" || input.PrincipalID == "" {
		return "", fmt.Errorf("content item id and principal id are required: %w", apperr.ErrInvalidInput)
	}

	// exact redelivery of an already-processed callback
	if input.PaymentReference != "" {
		event, err := s.callbackRepo.Find(ctx, input.PaymentReference)
		if err != nil {
			return "", fmt.Errorf("look up callback event: %w", err)
		}
		if event != nil && event.OrderID != "" {
			return event.OrderID, nil
		}
	}

	item, err := s.contentRepo.FindByID(ctx, input.ContentItemID)
	if err != nil {
		return "", err
	}

	product, err := s.ledger.ResolveProduct(ctx, item)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", fmt.Errorf("content %s has no product record: %w", item.ID, apperr.ErrNotFound)
	}

	principal, err := s.identity.PrincipalByID(ctx, input.PrincipalID)
	if err != nil {
		return "", fmt.Errorf("resolve purchasing principal: %w", err)
	}

	customerID, billing := s.resolveBilling(ctx, principal)

	orders, err := s.ledger.ListOrders(ctx, customerID, product.ID, principal.ID)
	if err != nil {
		return "", err
	}

	if existing := ReusableOrder(orders, product.ID); existing != nil {
		s.recordCallback(ctx, input, existing.ID)
		return existing.ID, nil
	}

	order, err := s.ledger.CreateOrder(ctx, &client.CreateOrderInput{
		CustomerID: customerID,
		ProductID:  product.ID,
		Total:      input.Amount,
		Status:     model.OrderCompleted,
		Metadata: map[string]string{
			metaContentItemID: item.ID,
			metaPrincipalID:   principal.ID,
		},
		Billing: billing,
	})
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}

	s.recordCallback(ctx, input, order.ID)
	return order.ID, nil
}

// resolveBilling finds or creates the commerce-side customer record. A
// creation failure does not abort the purchase; the order proceeds as a
// guest order with synthesized billing data. The orphaned customer-record
// risk of that fallback is accepted.
func (s *purchaseRecorderImpl) resolveBilling(ctx context.Context, principal *model.Principal) (string, *client.GuestBilling) {
	if principal.Email != "" {
		customer, err := s.ledger.FindCustomer(ctx, principal.Email)
		if err == nil && customer != nil {
			return customer.ID, nil
		}
		if err != nil {
			s.logger.Warn("customer lookup failed, trying creation", "error", err)
		}

		customer, err = s.ledger.CreateCustomer(ctx, principal)
		if err == nil {
			return customer.ID, nil
		}
		s.logger.Warn("customer creation failed, falling back to guest order", "error", err)
	}

	email := principal.Email
	if email == "" {
		email = fmt.Sprintf("guest-%s@orders.invalid", uuid.NewString())
	}
	return "", &client.GuestBilling{
		Email:     email,
		FirstName: principal.FirstName,
		LastName:  principal.LastName,
	}
}

func (s *purchaseRecorderImpl) recordCallback(ctx context.Context, input *RecordPurchaseInput, orderID string) {
	if input.PaymentReference == "" {
		return
	}
	err := s.callbackRepo.MarkProcessed(ctx, &model.CallbackEvent{
		PaymentReference: input.PaymentReference,
		Kind:             model.KindArticle,
		OrderID:          orderID,
		Status:           model.OrderCompleted,
	})
	if err != nil {
		// the duplicate-order guard still protects the next retry
		s.logger.Warn("record callback event failed", "payment_reference", input.PaymentReference, "error", err)
	}
}
