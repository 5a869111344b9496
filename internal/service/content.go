package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/repository"
)

const defaultCurrency = "CHF"

// ContentService is the single normalization step at the content-backend
// boundary. The backend spells access tier and price under several field
// names depending on plugin and version; everything downstream of here sees
// one canonical ContentItem and never branches on variants.
type ContentService interface {
	NormalizeAndUpsert(ctx context.Context, raw map[string]any) (*model.ContentItem, error)
	FindByID(ctx context.Context, id string) (*model.ContentItem, error)
}

type contentServiceImpl struct {
	contentRepo repository.ContentRepository
}

func NewContentService(contentRepo repository.ContentRepository) ContentService {
	return &contentServiceImpl{
		contentRepo: contentRepo,
	}
}

func (s *contentServiceImpl) NormalizeAndUpsert(ctx context.Context, raw map[string]any) (*model.ContentItem, error) {
	item, err := NormalizeContentItem(raw)
	if err != nil {
		return nil, err
	}
	if err := s.contentRepo.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("upsert content item: %w", err)
	}
	return item, nil
}

func (s *contentServiceImpl) FindByID(ctx context.Context, id string) (*model.ContentItem, error) {
	return s.contentRepo.FindByID(ctx, id)
}

// NormalizeContentItem maps a raw content-backend payload onto the
// canonical shape.
func NormalizeContentItem(raw map[string]any) (*model.ContentItem, error) {
	id := stringField(raw, "id")
	if id == "" {
		return nil, fmt.Errorf("content payload has no id: %w", apperr.ErrInvalidInput)
	}

	item := &model.ContentItem{
		ID:         id,
		Title:      titleField(raw),
		Slug:       stringField(raw, "slug"),
		Kind:       normalizeKind(firstString(raw, "kind", "type")),
		AccessTier: normalizeTier(tierField(raw)),
		Price:      priceField(raw),
		Currency:   defaultCurrency,
		ProductID:  firstString(raw, "product_id", "productId", "woo_product_id"),
	}
	if item.ProductID == "" {
		item.ProductID = firstString(nested(raw, "acf"), "product_id", "productId")
	}

	if extra, err := json.Marshal(raw); err == nil {
		item.Extra = datatypes.JSON(extra)
	}

	return item, nil
}

func normalizeKind(kind string) string {
	if kind == model.KindCourse {
		return model.KindCourse
	}
	return model.KindArticle
}

// tierField checks the known spellings in sequence, top level first, then
// the acf and meta blocks.
func tierField(raw map[string]any) string {
	for _, source := range []map[string]any{raw, nested(raw, "acf"), nested(raw, "meta")} {
		if tier := firstString(source, "access", "access_level", "accessTier", "access_tier"); tier != "" {
			return tier
		}
	}
	return ""
}

func normalizeTier(tier string) string {
	switch tier {
	case "members", model.TierMember:
		return model.TierMember
	case "premium", "paid", "premium-paid":
		return model.TierPremium
	default:
		return model.TierPublic
	}
}

func priceField(raw map[string]any) decimal.Decimal {
	for _, source := range []map[string]any{raw, nested(raw, "acf"), nested(raw, "meta")} {
		for _, key := range []string{"price", "regular_price"} {
			if price, ok := decimalValue(source[key]); ok {
				return price
			}
		}
	}
	return decimal.Zero
}

func titleField(raw map[string]any) string {
	if title := stringField(raw, "title"); title != "" {
		return title
	}
	// rendered-title envelope
	return stringField(nested(raw, "title"), "rendered")
}

func nested(raw map[string]any, key string) map[string]any {
	if raw == nil {
		return nil
	}
	m, _ := raw[key].(map[string]any)
	return m
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringField(raw, key); v != "" {
			return v
		}
	}
	return ""
}

func stringField(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		// JSON numbers arrive as float64; ids are integral in practice
		return decimal.NewFromFloat(v).String()
	default:
		return ""
	}
}

func decimalValue(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case string:
		if value == "" {
			return decimal.Zero, false
		}
		price, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, false
		}
		return price, true
	case float64:
		return decimal.NewFromFloat(value), true
	case json.Number:
		price, err := decimal.NewFromString(value.String())
		if err != nil {
			return decimal.Zero, false
		}
		return price, true
	default:
		return decimal.Zero, false
	}
}
