package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	KindArticle = "article"
	KindCourse  = "course"
)

const (
	TierPublic  = "public"
	TierMember  = "member"
	TierPremium = "premium"
)

// ContentItem is the canonical, already-normalized projection of a content
// backend item. The catalog stores it after the boundary normalization step;
// nothing downstream branches on the backend's variant field names.
type ContentItem struct {
	ID         string          `gorm:"primaryKey;size:64;not null"`
	Title      string          `gorm:"size:255;not null"`
	Slug       string          `gorm:"size:255;index"`
	Kind       string          `gorm:"size:16;index;not null"` // article, course
	AccessTier string          `gorm:"size:16;not null"`       // public, member, premium
	Price      decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency   string          `gorm:"size:8;not null"`
	// Explicit link to a commerce-backend product. Empty means the product
	// is located by the deterministic SKU instead.
	ProductID string `gorm:"size:64"`
	Extra     datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CallbackEvent records a processed payment-processor callback so an exact
// redelivery of the same payment reference short-circuits to the stored
// result instead of re-running the purchase flow.
type CallbackEvent struct {
	PaymentReference string `gorm:"primaryKey;size:128;not null"`
	Kind             string `gorm:"size:16;index"`
	OrderID          string `gorm:"size:64"`
	EnrollmentID     string `gorm:"size:64"`
	Status           string `gorm:"size:32"`
	Payload          datatypes.JSON
	ProcessedAt      time.Time
	CreatedAt        time.Time
}
