package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damsblt/helvetiforma-sub002/internal/client"
	"github.com/damsblt/helvetiforma-sub002/internal/config"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/repository"
)

type fakeLearningBackend struct {
	mu          sync.Mutex
	primaryDown   bool // deployment without the enrollment API
	enrollments   []*model.EnrollmentRecord
	markers       map[string]map[string]string // key -> metadata
	markerIDs     map[string]string
	markerCreates int
	nextID        int

	srv *httptest.Server
}

func newFakeLearningBackend(t *testing.T) *fakeLearningBackend {
	t.Helper()
	f := &fakeLearningBackend{
		markers:   map[string]map[string]string{},
		markerIDs: map[string]string{},
	}
	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLearningBackend) client() client.LearningClient {
	return client.NewLearningClient(&config.Learning{
		BaseApiURL:     f.srv.URL,
		Token:          "lb-token",
		TimeoutSeconds: 5,
	})
}

func (f *fakeLearningBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/enrollments":
		if f.primaryDown {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodPost {
			var in struct {
				CourseID string `json:"course_id"`
				UserID   string `json:"user_id"`
				Status   string `json:"status"`
			}
			json.NewDecoder(r.Body).Decode(&in)
			f.nextID++
			rec := &model.EnrollmentRecord{
				ID:       fmt.Sprintf("enr-%d", f.nextID),
				CourseID: in.CourseID,
				UserID:   in.UserID,
				Status:   in.Status,
			}
			f.enrollments = append(f.enrollments, rec)
			json.NewEncoder(w).Encode(rec)
			return
		}
		course, user := r.URL.Query().Get("course"), r.URL.Query().Get("user")
		matched := []*model.EnrollmentRecord{}
		for _, rec := range f.enrollments {
			if rec.CourseID == course && rec.UserID == user {
				matched = append(matched, rec)
			}
		}
		json.NewEncoder(w).Encode(matched)

	case r.URL.Path == "/enrollment-marker-posts":
		if r.Method == http.MethodPost {
			var in struct {
				Key      string            `json:"key"`
				Metadata map[string]string `json:"metadata"`
			}
			json.NewDecoder(r.Body).Decode(&in)
			f.nextID++
			f.markerCreates++
			f.markers[in.Key] = in.Metadata
			f.markerIDs[in.Key] = fmt.Sprintf("marker-%d", f.nextID)
			json.NewEncoder(w).Encode(map[string]string{"id": f.markerIDs[in.Key]})
			return
		}
		key := r.URL.Query().Get("key")
		type post struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		}
		matched := []post{}
		if meta, ok := f.markers[key]; ok {
			matched = append(matched, post{ID: f.markerIDs[key], Metadata: meta})
		}
		json.NewEncoder(w).Encode(matched)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newEnrollmentFixture(t *testing.T) (*fakeLearningBackend, *fakeIdentityBackend, EnrollmentService) {
	t.Helper()
	learning := newFakeLearningBackend(t)
	identity := newFakeIdentityBackend(t)
	svc := NewEnrollmentService(
		learning.client(),
		identity.client(),
		repository.NewCallbackEventRepository(newTestDB(t)),
		testLogger(),
	)
	return learning, identity, svc
}

func TestEnrollViaPrimaryAPI(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}

	result, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:         "course-1",
		UserIdentifier:   "jo@example.com",
		PaymentStatus:    "paid",
		PaymentReference: "pay-ref-1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentCompleted, result.Status)
	require.Len(t, learning.enrollments, 1)
	assert.Equal(t, "7", learning.enrollments[0].UserID)
	assert.Empty(t, learning.markers)
	assert.Empty(t, identity.createdUsers, "an existing profile must be reused")
}

func TestEnrollUnpaidIsPending(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}

	result, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:       "course-1",
		UserIdentifier: "jo@example.com",
		PaymentStatus:  "pending",
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentPending, result.Status)
	require.Len(t, learning.enrollments, 1)
	assert.Equal(t, model.EnrollmentPending, learning.enrollments[0].Status)
}

func TestEnrollCreatesMissingUser(t *testing.T) {
	_, identity, svc := newEnrollmentFixture(t)

	_, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:       "course-1",
		UserIdentifier: "new@example.com",
		PaymentStatus:  "paid",
	})
	require.NoError(t, err)

	require.Len(t, identity.createdUsers, 1)
	created := identity.createdUsers[0]
	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "new", created.Username)
	assert.Equal(t, []string{model.RoleSubscriber}, created.Roles)
	assert.NotEmpty(t, created.Password)
}

func TestEnrollFallsBackToMarker(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}
	learning.primaryDown = true

	result, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:       "course-1",
		UserIdentifier: "jo@example.com",
		PaymentStatus:  "paid",
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentCompleted, result.Status)
	assert.Empty(t, learning.enrollments)
	require.Len(t, learning.markers, 1)

	meta := learning.markers["enrollment-course-1-7"]
	require.NotNil(t, meta)
	assert.Equal(t, model.EnrollmentCompleted, meta["status"])

	// the per-course flag landed on the profile
	assert.Equal(t, model.EnrollmentCompleted, identity.profiles["7"].Meta["course_course-1_enrolled"])
}

func TestEnrollDuplicateCallbackDelivery(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}

	input := &EnrollInput{
		CourseID:         "course-1",
		UserIdentifier:   "jo@example.com",
		PaymentStatus:    "paid",
		PaymentReference: "pay-ref-dup",
	}

	first, err := svc.Enroll(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.Enroll(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.EnrollmentID, second.EnrollmentID)
	assert.Len(t, learning.enrollments, 1)
}

func TestEnrollRetryWithFreshReferenceReusesEnrollment(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}

	first, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:         "course-1",
		UserIdentifier:   "jo@example.com",
		PaymentStatus:    "paid",
		PaymentReference: "pay-ref-a",
	})
	require.NoError(t, err)

	// a retried checkout carries a fresh payment reference, so the
	// callback ledger cannot catch it
	second, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:         "course-1",
		UserIdentifier:   "jo@example.com",
		PaymentStatus:    "paid",
		PaymentReference: "pay-ref-b",
	})
	require.NoError(t, err)

	assert.Equal(t, first.EnrollmentID, second.EnrollmentID)
	assert.Equal(t, first.Status, second.Status)
	assert.Len(t, learning.enrollments, 1)
}

func TestEnrollRetryReusesMarkerFallback(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}
	learning.primaryDown = true

	first, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:         "course-1",
		UserIdentifier:   "jo@example.com",
		PaymentStatus:    "paid",
		PaymentReference: "pay-ref-a",
	})
	require.NoError(t, err)

	second, err := svc.Enroll(context.Background(), &EnrollInput{
		CourseID:         "course-1",
		UserIdentifier:   "jo@example.com",
		PaymentStatus:    "paid",
		PaymentReference: "pay-ref-b",
	})
	require.NoError(t, err)

	assert.Equal(t, first.EnrollmentID, second.EnrollmentID)
	assert.Equal(t, 1, learning.markerCreates)
}

func TestHasEnrollmentAcrossRepresentations(t *testing.T) {
	learning, identity, svc := newEnrollmentFixture(t)
	identity.profiles["7"] = &client.UserProfile{ID: "7", Email: "jo@example.com", Name: "jo"}
	principal := &model.Principal{ID: "7", Email: "jo@example.com"}

	has, err := svc.HasEnrollment(context.Background(), "course-1", principal)
	require.NoError(t, err)
	assert.False(t, has)

	// primary representation
	learning.enrollments = append(learning.enrollments, &model.EnrollmentRecord{
		ID: "enr-1", CourseID: "course-1", UserID: "7", Status: model.EnrollmentCompleted,
	})
	has, err = svc.HasEnrollment(context.Background(), "course-1", principal)
	require.NoError(t, err)
	assert.True(t, has)

	// marker representation on a deployment without the primary API
	learning.enrollments = nil
	learning.primaryDown = true
	learning.markers["enrollment-course-2-7"] = map[string]string{
		"course_id": "course-2", "user_id": "7", "status": model.EnrollmentCompleted,
	}
	has, err = svc.HasEnrollment(context.Background(), "course-2", principal)
	require.NoError(t, err)
	assert.True(t, has)

	// pending enrollments do not grant entitlement
	learning.markers["enrollment-course-3-7"] = map[string]string{
		"course_id": "course-3", "user_id": "7", "status": model.EnrollmentPending,
	}
	has, err = svc.HasEnrollment(context.Background(), "course-3", principal)
	require.NoError(t, err)
	assert.False(t, has)
}
