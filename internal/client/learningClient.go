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

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/config"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

// LearningClient talks to the learning backend. The primary enrollment API
// is not guaranteed present on every deployment, hence the marker-post pair
// of methods mirroring every primary operation.
type LearningClient interface {
	CreateEnrollment(ctx context.Context, courseID, userID, status string) (*model.EnrollmentRecord, error)
	// FindEnrollment returns (nil, nil) when no enrollment exists.
	FindEnrollment(ctx context.Context, courseID, userID string) (*model.EnrollmentRecord, error)
	CreateMarkerPost(ctx context.Context, courseID, userID, status string) (*model.EnrollmentRecord, error)
	FindMarkerPost(ctx context.Context, courseID, userID string) (*model.EnrollmentRecord, error)
}

type learningClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	token      string
}

func NewLearningClient(learningCfg *config.Learning) LearningClient {
	return &learningClientImpl{
		httpClient: &http.Client{
			Timeout: time.Duration(learningCfg.TimeoutSeconds) * time.Second,
		},
		baseApiURL: strings.TrimRight(learningCfg.BaseApiURL, "/"),
		token:      learningCfg.Token,
	}
}

type enrollmentPayload struct {
	CourseID string `json:"course_id"`
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
}

// markerPayload carries the same triple as an enrollment inside a generic
// post's metadata, for deployments without the primary enrollment API.
type markerPayload struct {
	Key      string            `json:"key"`
	Metadata map[string]string `json:"metadata"`
}

func (c *learningClientImpl) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal learning payload: %w", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("learning %s %s: %w: %w", method, path, apperr.ErrBackendUnavailable, err)
	}
	return resp, nil
}

func (c *learningClientImpl) CreateEnrollment(ctx context.Context, courseID, userID, status string) (*model.EnrollmentRecord, error) {
	resp, err := c.do(ctx, http.MethodPost, "/enrollments", &enrollmentPayload{
		CourseID: courseID,
		UserID:   userID,
		Status:   status,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("learning create enrollment: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var rec model.EnrollmentRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode enrollment response: %w", err)
	}
	return &rec, nil
}

func (c *learningClientImpl) FindEnrollment(ctx context.Context, courseID, userID string) (*model.EnrollmentRecord, error) {
	params := url.Values{}
	params.Set("course", courseID)
	params.Set("user", userID)

	resp, err := c.do(ctx, http.MethodGet, "/enrollments?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("learning find enrollment: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var recs []*model.EnrollmentRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode enrollment list: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func markerKey(courseID, userID string) string {
	return fmt.Sprintf("enrollment-%s-%s", courseID, userID)
}

func (c *learningClientImpl) CreateMarkerPost(ctx context.Context, courseID, userID, status string) (*model.EnrollmentRecord, error) {
	resp, err := c.do(ctx, http.MethodPost, "/enrollment-marker-posts", &markerPayload{
		Key: markerKey(courseID, userID),
		Metadata: map[string]string{
			"course_id": courseID,
			"user_id":   userID,
			"status":    status,
		},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("learning create marker post: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode marker post response: %w", err)
	}

	return &model.EnrollmentRecord{
		ID:       created.ID,
		CourseID: courseID,
		UserID:   userID,
		Status:   status,
		Marker:   true,
	}, nil
}

func (c *learningClientImpl) FindMarkerPost(ctx context.Context, courseID, userID string) (*model.EnrollmentRecord, error) {
	params := url.Values{}
	params.Set("key", markerKey(courseID, userID))

	resp, err := c.do(ctx, http.MethodGet, "/enrollment-marker-posts?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("learning find marker post: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var posts []struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode marker post list: %w", err)
	}
	if len(posts) == 0 {
		return nil, nil
	}

	return &model.EnrollmentRecord{
		ID:       posts[0].ID,
		CourseID: courseID,
		UserID:   userID,
		Status:   posts[0].Metadata["status"],
		Marker:   true,
	}, nil
}
