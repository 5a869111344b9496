package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/client"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

const (
	metaContentItemID = "contentItemId"
	metaPrincipalID   = "principalId"
)

// ArticleSKU is the deterministic commerce-backend SKU for a content item
// without an explicit product link.
func ArticleSKU(contentItemID string) string {
	return "article-" + contentItemID
}

// PurchaseLedger maps content items to commerce-backend product records and
// queries/creates customer and order records there.
type PurchaseLedger interface {
	// ResolveProduct tries the item's explicit product link, then a search
	// by the deterministic SKU. (nil, nil) means "not purchasable yet",
	// which callers must not treat as an error.
	ResolveProduct(ctx context.Context, item *model.ContentItem) (*model.ProductRecord, error)
	FindCustomer(ctx context.Context, email string) (*model.CustomerRecord, error)
	CreateCustomer(ctx context.Context, principal *model.Principal) (*model.CustomerRecord, error)
	// ListOrders returns all non-deleted orders for the (customer, product)
	// pair regardless of status. With an empty customerID it returns guest
	// orders for the product carrying principalID in their metadata.
	ListOrders(ctx context.Context, customerID, productID, principalID string) ([]*model.OrderRecord, error)
	CreateOrder(ctx context.Context, input *client.CreateOrderInput) (*model.OrderRecord, error)
	HasCompletedOrder(ctx context.Context, principal *model.Principal, item *model.ContentItem) (bool, error)
}

type purchaseLedgerImpl struct {
	commerceClient client.CommerceClient
}

func NewPurchaseLedger(commerceClient client.CommerceClient) PurchaseLedger {
	return &purchaseLedgerImpl{
		commerceClient: commerceClient,
	}
}

func (l *purchaseLedgerImpl) ResolveProduct(ctx context.Context, item *model.ContentItem) (*model.ProductRecord, error) {
	if item.ProductID != "" {
		product, err := l.commerceClient.GetProduct(ctx, item.ProductID)
		if err == nil {
			return product, nil
		}
		// a dangling explicit link falls through to the SKU search
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("resolve linked product %s: %w", item.ProductID, err)
		}
	}

	product, err := l.commerceClient.FindProductBySKU(ctx, ArticleSKU(item.ID))
	if err != nil {
		return nil, fmt.Errorf("search product by sku: %w", err)
	}

	return product, nil
}

func (l *purchaseLedgerImpl) FindCustomer(ctx context.Context, email string) (*model.CustomerRecord, error) {
	return l.commerceClient.FindCustomerByEmail(ctx, email)
}

func (l *purchaseLedgerImpl) CreateCustomer(ctx context.Context, principal *model.Principal) (*model.CustomerRecord, error) {
	return l.commerceClient.CreateCustomer(ctx, &client.CreateCustomerInput{
		Email:     principal.Email,
		FirstName: principal.FirstName,
		LastName:  principal.LastName,
	})
}

func (l *purchaseLedgerImpl) ListOrders(ctx context.Context, customerID, productID, principalID string) ([]*model.OrderRecord, error) {
	orders, err := l.commerceClient.ListOrders(ctx, &client.ListOrdersQuery{
		CustomerID: customerID,
		ProductID:  productID,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if customerID != "" {
		return orders, nil
	}

	// guest orders carry the principal in metadata instead of a customer id
	matched := make([]*model.OrderRecord, 0, len(orders))
	for _, order := range orders {
		if order.Metadata[metaPrincipalID] == principalID {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

func (l *purchaseLedgerImpl) CreateOrder(ctx context.Context, input *client.CreateOrderInput) (*model.OrderRecord, error) {
	return l.commerceClient.CreateOrder(ctx, input)
}

func (l *purchaseLedgerImpl) HasCompletedOrder(ctx context.Context, principal *model.Principal, item *model.ContentItem) (bool, error) {
	product, err := l.ResolveProduct(ctx, item)
	if err != nil {
		return false, err
	}
	if product == nil {
		// nothing to have bought yet
		return false, nil
	}

	customerID := ""
	if principal.Email != "" {
		customer, err := l.FindCustomer(ctx, principal.Email)
		if err != nil {
			return false, err
		}
		if customer != nil {
			customerID = customer.ID
		}
	}

	orders, err := l.ListOrders(ctx, customerID, product.ID, principal.ID)
	if err != nil {
		return false, err
	}

	for _, order := range orders {
		if order.ProductID == product.ID && order.Status == model.OrderCompleted {
			return true, nil
		}
	}
	return false, nil
}
