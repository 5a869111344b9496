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
)

// UserProfile is the identity backend's wire shape for a user.
type UserProfile struct {
	ID    string            `json:"id"`
	Email string            `json:"email"`
	Name  string            `json:"name"`
	Roles []string          `json:"roles"`
	Meta  map[string]string `json:"meta"`
}

type CreateUserInput struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

type IdentityClient interface {
	// Me presents (identifier, secret) as a direct credential pair to the
	// backend's who-am-i endpoint. Returns apperr.ErrInvalidCredentials when
	// the backend rejects the pair.
	Me(ctx context.Context, identifier, secret string) (*UserProfile, error)
	// FormLogin submits the pair through the interactive login form. A
	// redirect away from the login page counts as success.
	FormLogin(ctx context.Context, identifier, secret string) (bool, error)
	// SearchUsers runs a privileged profile search with the service account.
	SearchUsers(ctx context.Context, query string) ([]*UserProfile, error)
	GetUser(ctx context.Context, id string) (*UserProfile, error)
	CreateUser(ctx context.Context, input *CreateUserInput) (*UserProfile, error)
	UpdateUserMeta(ctx context.Context, id string, meta map[string]string) error
}

type identityClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	serviceUser   string
	serviceSecret string
}

func NewIdentityClient(identityCfg *config.Identity) IdentityClient {
	return &identityClientImpl{
		httpClient: &http.Client{
			Timeout: time.Duration(identityCfg.TimeoutSeconds) * time.Second,
			// the login form answers with a redirect; we need to see it,
			// not follow it
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseApiURL:    strings.TrimRight(identityCfg.BaseApiURL, "/"),
		serviceUser:   identityCfg.ServiceUser,
		serviceSecret: identityCfg.ServiceSecret,
	}
}

func (c *identityClientImpl) Me(ctx context.Context, identifier, secret string) (*UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseApiURL+"/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(identifier, secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity who-am-i: %w: %w", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("identity who-am-i: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("identity who-am-i: status %d: %w", resp.StatusCode, apperr.ErrInvalidCredentials)
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode who-am-i response: %w", err)
	}

	return &profile, nil
}

func (c *identityClientImpl) FormLogin(ctx context.Context, identifier, secret string) (bool, error) {
	form := url.Values{}
	form.Set("log", identifier)
	form.Set("pwd", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/login-form",
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("identity form login: %w: %w", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("identity form login: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return false, nil
	}

	// a redirect back to the login page means the credentials were rejected
	location := resp.Header.Get("Location")
	return !strings.Contains(location, "login"), nil
}

func (c *identityClientImpl) SearchUsers(ctx context.Context, query string) ([]*UserProfile, error) {
	u := fmt.Sprintf("%s/users?search=%s", c.baseApiURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.serviceUser, c.serviceSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity search users: %w: %w", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("identity search users: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var profiles []*UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("decode user search response: %w", err)
	}

	return profiles, nil
}

func (c *identityClientImpl) GetUser(ctx context.Context, id string) (*UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseApiURL+"/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.serviceUser, c.serviceSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity get user: %w: %w", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("identity user %s: %w", id, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("identity get user: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}

	return &profile, nil
}

func (c *identityClientImpl) CreateUser(ctx context.Context, input *CreateUserInput) (*UserProfile, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal create user payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/users", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.serviceUser, c.serviceSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity create user: %w: %w", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("identity create user: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode created user response: %w", err)
	}

	return &profile, nil
}

func (c *identityClientImpl) UpdateUserMeta(ctx context.Context, id string, meta map[string]string) error {
	body, err := json.Marshal(map[string]any{"meta": meta})
	if err != nil {
		return fmt.Errorf("marshal user meta payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/users/"+url.PathEscape(id), bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.SetBasicAuth(c.serviceUser, c.serviceSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity update user meta: %w: %w", apperr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity update user meta: status %d: %w", resp.StatusCode, apperr.ErrBackendUnavailable)
	}

	return nil
}
