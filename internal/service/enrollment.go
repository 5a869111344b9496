package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/client"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
	"github.com/damsblt/helvetiforma-sub002/internal/repository"
)

const paymentStatusPaid = "paid"

type EnrollInput struct {
	CourseID         string
	UserIdentifier   string // learning-backend user id or an email
	PaymentStatus    string
	PaymentReference string
}

type EnrollResult struct {
	EnrollmentID string `json:"enrollment_id"`
	Status       string `json:"status"`
}

// EnrollmentService writes course enrollments into the learning backend and
// answers entitlement checks against either physical representation. The
// primary enrollment API is optional per deployment, so every write has a
// marker-post fallback.
type EnrollmentService interface {
	Enroll(ctx context.Context, input *EnrollInput) (*EnrollResult, error)
	HasEnrollment(ctx context.Context, courseID string, principal *model.Principal) (bool, error)
}

type enrollmentServiceImpl struct {
	learningClient client.LearningClient
	identityClient client.IdentityClient
	callbackRepo   repository.CallbackEventRepository
	logger         *slog.Logger
}

func NewEnrollmentService(
	learningClient client.LearningClient,
	identityClient client.IdentityClient,
	callbackRepo repository.CallbackEventRepository,
	logger *slog.Logger,
) EnrollmentService {
	return &enrollmentServiceImpl{
		learningClient: learningClient,
		identityClient: identityClient,
		callbackRepo:   callbackRepo,
		logger:         logger,
	}
}

func courseMetaKey(courseID string) string {
	return fmt.Sprintf("course_%s_enrolled", courseID)
}

func (s *enrollmentServiceImpl) Enroll(ctx context.Context, input *EnrollInput) (*EnrollResult, error) {
	if input.CourseID == "" || input.UserIdentifier == "" {
		return nil, fmt.Errorf("course id and user identifier are required: %w", apperr.ErrInvalidInput)
	}

	if input.PaymentReference != "" {
		event, err := s.callbackRepo.Find(ctx, input.PaymentReference)
		if err != nil {
			return nil, fmt.Errorf("look up callback event: %w", err)
		}
		if event != nil && event.EnrollmentID != "" {
			return &EnrollResult{EnrollmentID: event.EnrollmentID, Status: event.Status}, nil
		}
	}

	userID, err := s.resolveUserID(ctx, input.UserIdentifier)
	if err != nil {
		return nil, err
	}

	if existing := ReusableEnrollment(s.existingEnrollments(ctx, input.CourseID, userID), input.CourseID); existing != nil {
		s.recordCallback(ctx, input, existing.ID, existing.Status)
		return &EnrollResult{EnrollmentID: existing.ID, Status: existing.Status}, nil
	}

	status := model.EnrollmentPending
	if input.PaymentStatus == paymentStatusPaid {
		status = model.EnrollmentCompleted
	}

	record, err := s.learningClient.CreateEnrollment(ctx, input.CourseID, userID, status)
	if err != nil {
		s.logger.Warn("primary enrollment api failed, using marker fallback",
			"course_id", input.CourseID, "user_id", userID, "error", err)

		record, err = s.learningClient.CreateMarkerPost(ctx, input.CourseID, userID, status)
		if err != nil {
			return nil, fmt.Errorf("enrollment fallback: %w", err)
		}

		// per-course flag on the profile so entitlement checks succeed even
		// if the marker post is slow to index
		metaErr := s.identityClient.UpdateUserMeta(ctx, userID, map[string]string{
			courseMetaKey(input.CourseID): status,
		})
		if metaErr != nil {
			s.logger.Warn("write course flag to user meta failed", "user_id", userID, "error", metaErr)
		}
	}

	s.recordCallback(ctx, input, record.ID, status)
	return &EnrollResult{EnrollmentID: record.ID, Status: status}, nil
}

// existingEnrollments collects whatever record already exists for the
// course/user pair, from either physical representation. Lookup failures are
// logged and treated as no record, so an unreachable representation cannot
// block the write path.
func (s *enrollmentServiceImpl) existingEnrollments(ctx context.Context, courseID, userID string) []*model.EnrollmentRecord {
	var records []*model.EnrollmentRecord

	record, err := s.learningClient.FindEnrollment(ctx, courseID, userID)
	if err != nil {
		s.logger.Warn("primary enrollment lookup before create failed", "course_id", courseID, "error", err)
	} else if record != nil {
		records = append(records, record)
	}

	record, err = s.learningClient.FindMarkerPost(ctx, courseID, userID)
	if err != nil {
		s.logger.Warn("marker lookup before create failed", "course_id", courseID, "error", err)
	} else if record != nil {
		records = append(records, record)
	}

	return records
}

// resolveUserID maps an email identifier to a backend user id, creating the
// user with a random password when no profile matches. Non-email
// identifiers are taken as backend user ids directly.
func (s *enrollmentServiceImpl) resolveUserID(ctx context.Context, identifier string) (string, error) {
	if !strings.Contains(identifier, "@") {
		return identifier, nil
	}

	profiles, err := s.identityClient.SearchUsers(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("search enrollment user: %w", err)
	}
	for _, profile := range profiles {
		if strings.EqualFold(profile.Email, identifier) {
			return profile.ID, nil
		}
	}

	localPart, _, _ := strings.Cut(identifier, "@")
	created, err := s.identityClient.CreateUser(ctx, &client.CreateUserInput{
		Username: localPart,
		Email:    identifier,
		Password: uuid.NewString(),
		Roles:    []string{model.RoleSubscriber},
	})
	if err != nil {
		return "", fmt.Errorf("create enrollment user: %w", err)
	}
	return created.ID, nil
}

func (s *enrollmentServiceImpl) HasEnrollment(ctx context.Context, courseID string, principal *model.Principal) (bool, error) {
	if principal.ID == "" {
		return false, nil
	}

	record, err := s.learningClient.FindEnrollment(ctx, courseID, principal.ID)
	if err == nil && record != nil {
		return record.Status == model.EnrollmentCompleted, nil
	}
	if err != nil {
		s.logger.Warn("primary enrollment lookup failed, checking marker", "course_id", courseID, "error", err)
	}

	record, err = s.learningClient.FindMarkerPost(ctx, courseID, principal.ID)
	if err == nil && record != nil {
		return record.Status == model.EnrollmentCompleted, nil
	}
	if err != nil {
		s.logger.Warn("marker lookup failed, checking user meta", "course_id", courseID, "error", err)
	}

	profile, err := s.identityClient.GetUser(ctx, principal.ID)
	if err != nil {
		return false, fmt.Errorf("enrollment meta lookup: %w", err)
	}
	return profile.Meta[courseMetaKey(courseID)] == model.EnrollmentCompleted, nil
}

func (s *enrollmentServiceImpl) recordCallback(ctx context.Context, input *EnrollInput, enrollmentID, status string) {
	if input.PaymentReference == "" {
		return
	}
	err := s.callbackRepo.MarkProcessed(ctx, &model.CallbackEvent{
		PaymentReference: input.PaymentReference,
		Kind:             model.KindCourse,
		EnrollmentID:     enrollmentID,
		Status:           status,
	})
	if err != nil {
		s.logger.Warn("record callback event failed", "payment_reference", input.PaymentReference, "error", err)
	}
}
