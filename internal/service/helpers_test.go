package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=busy_timeout(5000)"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ContentItem{}, &model.CallbackEvent{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM content_items")
		db.Exec("DELETE FROM callback_events")
	})
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubIdentity satisfies IdentityResolver with a fixed principal.
type stubIdentity struct {
	principal *model.Principal
	err       error
}

func (s *stubIdentity) Resolve(ctx context.Context, identifier, secret string) (*model.Principal, error) {
	return s.principal, s.err
}

func (s *stubIdentity) PrincipalByID(ctx context.Context, id string) (*model.Principal, error) {
	return s.principal, s.err
}

// stubEnrollmentChecker answers HasEnrollment with a fixed value.
type stubEnrollmentChecker struct {
	enrolled bool
	err      error
}

func (s *stubEnrollmentChecker) HasEnrollment(ctx context.Context, courseID string, principal *model.Principal) (bool, error) {
	return s.enrolled, s.err
}

// stubLedger overrides HasCompletedOrder; the embedded interface panics on
// anything else, which keeps entitlement tests honest about what they touch.
type stubLedger struct {
	PurchaseLedger
	completed bool
	err       error
}

func (s *stubLedger) HasCompletedOrder(ctx context.Context, principal *model.Principal, item *model.ContentItem) (bool, error) {
	return s.completed, s.err
}
