package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/config"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

// GuestBilling is the inline billing block for orders without a customer
// record.
type GuestBilling struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CreateCustomerInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CreateOrderInput struct {
	CustomerID string            `json:"customer_id,omitempty"`
	ProductID  string            `json:"product_id"`
	Total      decimal.Decimal   `json:"total"`
	Status     string            `json:"status"`
	Metadata   map[string]string `json:"metadata"`
	Billing    *GuestBilling     `json:"billing,omitempty"`
}

type ListOrdersQuery struct {
	CustomerID string
	ProductID  string
}

type CommerceClient interface {
	GetProduct(ctx context.Context, id string) (*model.ProductRecord, error)
	// FindProductBySKU returns (nil, nil) when no product carries the SKU.
	FindProductBySKU(ctx context.Context, sku string) (*model.ProductRecord, error)
	// FindCustomerByEmail returns (nil, nil) when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (*model.CustomerRecord, error)
	CreateCustomer(ctx context.Context, input *CreateCustomerInput) (*model.CustomerRecord, error)
	// ListOrders returns all non-deleted orders matching the query,
	// regardless of status.
	ListOrders(ctx context.Context, q *ListOrdersQuery) ([]*model.OrderRecord, error)
	CreateOrder(ctx context.Context, input *CreateOrderInput) (*model.OrderRecord, error)
}

type commerceClientImpl struct {
	httpClient     *http.Client
	baseApiURL     string
	consumerKey    string
	consumerSecret string
}

func NewCommerceClient(commerceCfg *config.Commerce) CommerceClient {
	return &commerceClientImpl{
		httpClient: &http.Client{
			Timeout: time.Duration(commerceCfg.TimeoutSeconds) * time.Second,
		},
		baseApiURL:     strings.TrimRight(commerceCfg.BaseApiURL, "/"),
		consumerKey:    commerceCfg.ConsumerKey,
		consumerSecret: commerceCfg.ConsumerSecret,
	}
}

func (c *commerceClientImpl) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseApiURL+path, nil)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce get %s: %w: %w", path, apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("commerce get %s: %w", path, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("commerce get %s: status %d: %w", path, resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode commerce response: %w", err)
	}

	return nil
}

func (c *commerceClientImpl) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal commerce payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce post %s: %w: %w", path, apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("commerce post %s: status %d: %w", path, resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode commerce response: %w", err)
	}

	return nil
}

func (c *commerceClientImpl) GetProduct(ctx context.Context, id string) (*model.ProductRecord, error) {
	var product model.ProductRecord
	if err := c.get(ctx, "/products/"+url.PathEscape(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *commerceClientImpl) FindProductBySKU(ctx context.Context, sku string) (*model.ProductRecord, error) {
	var products []*model.ProductRecord
	if err := c.get(ctx, "/products?sku="+url.QueryEscape(sku), &products); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return products[0], nil
}

func (c *commerceClientImpl) FindCustomerByEmail(ctx context.Context, email string) (*model.CustomerRecord, error) {
	var customers []*model.CustomerRecord
	if err := c.get(ctx, "/customers?email="+url.QueryEscape(email), &customers); err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0], nil
}

func (c *commerceClientImpl) CreateCustomer(ctx context.Context, input *CreateCustomerInput) (*model.CustomerRecord, error) {
	var customer model.CustomerRecord
	if err := c.post(ctx, "/customers", input, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *commerceClientImpl) ListOrders(ctx context.Context, q *ListOrdersQuery) ([]*model.OrderRecord, error) {
	params := url.Values{}
	if q.CustomerID != "" {
		params.Set("customer", q.CustomerID)
	}
	if q.ProductID != "" {
		params.Set("product", q.ProductID)
	}

	var orders []*model.OrderRecord
	if err := c.get(ctx, "/orders?"+params.Encode(), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *commerceClientImpl) CreateOrder(ctx context.Context, input *CreateOrderInput) (*model.OrderRecord, error) {
	var order model.OrderRecord
	if err := c.post(ctx, "/orders", input, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
