package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdministrator = "administrator"
	RoleSubscriber    = "subscriber"
)

const (
	OrderCompleted = "completed"
	OrderPending   = "pending"
	OrderFailed    = "failed"
)

const (
	EnrollmentCompleted = "completed"
	EnrollmentPending   = "pending"
)

// Principal is a verified end-user identity as returned by the identity
// backend. Immutable once resolved within a request.
type Principal struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

func (p *Principal) IsAdministrator() bool {
	if p == nil {
		return false
	}
	for _, role := range p.Roles {
		if role == RoleAdministrator {
			return true
		}
	}
	return false
}

func (p *Principal) DisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ProductRecord is the commerce backend's representation of a purchasable
// item, located either by explicit link or by the deterministic SKU.
type ProductRecord struct {
	ID    string          `json:"id"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
}

// CustomerRecord is the commerce backend's billing-side view of a principal.
type CustomerRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// OrderRecord is the durable proof of entitlement. Never mutated after
// creation; refunds and cancellations happen elsewhere.
type OrderRecord struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"` // empty for guest orders
	ProductID  string            `json:"product_id"`
	Status     string            `json:"status"` // completed, pending, failed
	Total      decimal.Decimal   `json:"total"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// EnrollmentRecord is the learning backend's proof of course access. Marker
// is set when the record lives in the generic-post fallback representation;
// both representations count the same for entitlement.
type EnrollmentRecord struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	UserID   string `json:"user_id"`
	Status   string `json:"status"` // completed, pending
	Marker   bool   `json:"marker,omitempty"`
}
