package service

import (
	"context"
	"fmt"

	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

// EnrollmentChecker reports whether a principal holds a completed course
// enrollment in either of its physical representations.
type EnrollmentChecker interface {
	HasEnrollment(ctx context.Context, courseID string, principal *model.Principal) (bool, error)
}

// EntitlementService decides whether a principal may view a content item.
// No caching: entitlement is security-sensitive and must reflect the
// ledger's current state on every call.
type EntitlementService interface {
	CanView(ctx context.Context, principal *model.Principal, item *model.ContentItem) (bool, error)
}

type entitlementServiceImpl struct {
	ledger      PurchaseLedger
	enrollments EnrollmentChecker
}

func NewEntitlementService(ledger PurchaseLedger, enrollments EnrollmentChecker) EntitlementService {
	return &entitlementServiceImpl{
		ledger:      ledger,
		enrollments: enrollments,
	}
}

func (s *entitlementServiceImpl) CanView(ctx context.Context, principal *model.Principal, item *model.ContentItem) (bool, error) {
	// operator override, any tier
	if principal.IsAdministrator() {
		return true, nil
	}

	switch item.AccessTier {
	case model.TierPublic:
		return true, nil
	case model.TierMember:
		return principal != nil, nil
	case model.TierPremium:
		if principal == nil {
			return false, nil
		}
		if item.Kind == model.KindCourse {
			return s.enrollments.HasEnrollment(ctx, item.ID, principal)
		}
		return s.ledger.HasCompletedOrder(ctx, principal, item)
	default:
		return false, fmt.Errorf("unknown access tier %q on content %s", item.AccessTier, item.ID)
	}
}
