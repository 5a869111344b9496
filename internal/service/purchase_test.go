package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/repository"
)

func newPurchaseFixture(t *testing.T) (*fakeCommerceBackend, PurchaseRecorder, PurchaseLedger) {
	t.Helper()
	backend := newFakeCommerceBackend(t)
	db := newTestDB(t)

	contentRepo := repository.NewContentRepository(db)
	require.NoError(t, contentRepo.Upsert(context.Background(), &model.ContentItem{
		ID:         "c1",
		Title:      "Premium article",
		Kind:       model.KindArticle,
		AccessTier: model.TierPremium,
		Price:      decimal.NewFromInt(10),
		Currency:   "CHF",
	}))

	ledger := NewPurchaseLedger(backend.client())
	recorder := NewPurchaseRecorder(
		contentRepo,
		repository.NewCallbackEventRepository(db),
		ledger,
		&stubIdentity{principal: &model.Principal{
			ID:        "p1",
			Email:     "p1@example.com",
			FirstName: "Pat",
			LastName:  "One",
			Roles:     []string{model.RoleSubscriber},
		}},
		testLogger(),
	)
	return backend, recorder, ledger
}

func TestRecordPurchaseIsIdempotent(t *testing.T) {
	backend, recorder, ledger := newPurchaseFixture(t)
	backend.products = append(backend.products, &model.ProductRecord{ID: "prod-1", SKU: "article-c1", Price: decimal.NewFromInt(10)})

	item := &model.ContentItem{ID: "c1", AccessTier: model.TierPremium}
	principal := &model.Principal{ID: "p1", Email: "p1@example.com"}

	has, err := ledger.HasCompletedOrder(context.Background(), principal, item)
	require.NoError(t, err)
	assert.False(t, has, "no entitlement before the purchase")

	var firstOrderID string
	// distinct payment references force every retry through the live
	// guard path rather than the callback-event short-circuit
	for i := 0; i < 3; i++ {
		orderID, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{
			ContentItemID:    "c1",
			PrincipalID:      "p1",
			Amount:           decimal.NewFromInt(10),
			PaymentReference: fmt.Sprintf("pay-ref-%d", i),
		})
		require.NoError(t, err)
		if firstOrderID == "" {
			firstOrderID = orderID
		}
		assert.Equal(t, firstOrderID, orderID)
	}

	assert.Equal(t, 1, backend.orderCreates, "retries must not create additional orders")
	require.Len(t, backend.orders, 1)
	assert.Equal(t, model.OrderCompleted, backend.orders[0].Status)
	assert.Equal(t, "c1", backend.orders[0].Metadata["contentItemId"])
	assert.Equal(t, "p1", backend.orders[0].Metadata["principalId"])

	has, err = ledger.HasCompletedOrder(context.Background(), principal, item)
	require.NoError(t, err)
	assert.True(t, has, "entitlement must reflect the ledger after the purchase")
}

func TestRecordPurchaseDuplicateCallbackDelivery(t *testing.T) {
	backend, recorder, _ := newPurchaseFixture(t)
	backend.products = append(backend.products, &model.ProductRecord{ID: "prod-1", SKU: "article-c1"})

	input := &RecordPurchaseInput{
		ContentItemID:    "c1",
		PrincipalID:      "p1",
		Amount:           decimal.NewFromInt(10),
		PaymentReference: "pay-ref-dup",
	}

	first, err := recorder.RecordPurchase(context.Background(), input)
	require.NoError(t, err)
	second, err := recorder.RecordPurchase(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, backend.orders, 1)
}

func TestRecordPurchaseNotPurchasable(t *testing.T) {
	backend, recorder, ledger := newPurchaseFixture(t)
	// no product with sku article-c1 anywhere

	_, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{
		ContentItemID:    "c1",
		PrincipalID:      "p1",
		Amount:           decimal.NewFromInt(10),
		PaymentReference: "pay-ref-1",
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, backend.orders)

	has, err := ledger.HasCompletedOrder(context.Background(),
		&model.Principal{ID: "p1", Email: "p1@example.com"},
		&model.ContentItem{ID: "c1", AccessTier: model.TierPremium})
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRecordPurchaseUnknownContent(t *testing.T) {
	_, recorder, _ := newPurchaseFixture(t)

	_, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{
		ContentItemID: "nope",
		PrincipalID:   "p1",
		Amount:        decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordPurchaseRejectsMissingFields(t *testing.T) {
	_, recorder, _ := newPurchaseFixture(t)

	_, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRecordPurchaseGuestFallback(t *testing.T) {
	backend, recorder, _ := newPurchaseFixture(t)
	backend.products = append(backend.products, &model.ProductRecord{ID: "prod-1", SKU: "article-c1"})
	backend.failCustomerCreate = true

	orderID, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{
		ContentItemID:    "c1",
		PrincipalID:      "p1",
		Amount:           decimal.NewFromInt(10),
		PaymentReference: "pay-ref-1",
	})
	require.NoError(t, err, "customer creation failure must not abort the purchase")

	require.Len(t, backend.orders, 1)
	assert.Empty(t, backend.orders[0].CustomerID)
	assert.Equal(t, "p1", backend.orders[0].Metadata["principalId"])

	// a retry still converges on the guest order via its metadata
	again, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{
		ContentItemID:    "c1",
		PrincipalID:      "p1",
		Amount:           decimal.NewFromInt(10),
		PaymentReference: "pay-ref-2",
	})
	require.NoError(t, err)
	assert.Equal(t, orderID, again)
	assert.Len(t, backend.orders, 1)
}

func TestRecordPurchaseFailedOrderDoesNotBlock(t *testing.T) {
	backend, recorder, _ := newPurchaseFixture(t)
	backend.products = append(backend.products, &model.ProductRecord{ID: "prod-1", SKU: "article-c1"})
	backend.orders = append(backend.orders, &model.OrderRecord{
		ID:        "order-failed",
		ProductID: "prod-1",
		Status:    model.OrderFailed,
		Metadata:  map[string]string{"principalId": "p1"},
	})

	orderID, err := recorder.RecordPurchase(context.Background(), &RecordPurchaseInput{
		ContentItemID:    "c1",
		PrincipalID:      "p1",
		Amount:           decimal.NewFromInt(10),
		PaymentReference: "pay-ref-1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "order-failed", orderID)
	assert.Equal(t, 1, backend.orderCreates)
}
