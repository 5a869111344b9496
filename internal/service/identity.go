package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/client"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

// AuthStrategy is one independent credential scheme against the identity
// backend. (nil, nil) means the scheme rejected the credentials; a non-nil
// error means the scheme could not be evaluated (transport failure).
type AuthStrategy interface {
	Attempt(ctx context.Context, identifier, secret string) (*model.Principal, error)
}

// IdentityResolver turns an (identifier, secret) pair into a verified
// principal by evaluating its strategies in priority order.
type IdentityResolver interface {
	Resolve(ctx context.Context, identifier, secret string) (*model.Principal, error)
	PrincipalByID(ctx context.Context, id string) (*model.Principal, error)
}

type identityResolverImpl struct {
	identityClient client.IdentityClient
	strategies     []AuthStrategy
	logger         *slog.Logger
}

func NewIdentityResolver(identityClient client.IdentityClient, logger *slog.Logger) IdentityResolver {
	return &identityResolverImpl{
		identityClient: identityClient,
		strategies: []AuthStrategy{
			&tokenStrategy{identityClient: identityClient},
			&formLoginStrategy{identityClient: identityClient, logger: logger},
		},
		logger: logger,
	}
}

func (r *identityResolverImpl) Resolve(ctx context.Context, identifier, secret string) (*model.Principal, error) {
	if identifier == "" || secret == "" {
		return nil, fmt.Errorf("identifier and secret are required: %w", apperr.ErrInvalidInput)
	}

	unreachable := 0
	for _, strategy := range r.strategies {
		principal, err := attemptWithRetry(ctx, strategy, identifier, secret)
		if err != nil {
			unreachable++
			r.logger.Warn("auth scheme unreachable", "error", err)
			continue
		}
		if principal != nil {
			return principal, nil
		}
	}

	if unreachable == len(r.strategies) {
		// logged distinctly; callers surface the same generic message as a
		// credential rejection
		return nil, fmt.Errorf("all auth schemes unreachable: %w", apperr.ErrBackendUnavailable)
	}

	// never reveal which scheme failed or whether the identifier exists
	return nil, apperr.ErrInvalidCredentials
}

// attemptWithRetry retries a strategy once on transport failure.
func attemptWithRetry(ctx context.Context, strategy AuthStrategy, identifier, secret string) (*model.Principal, error) {
	principal, err := strategy.Attempt(ctx, identifier, secret)
	if err == nil {
		return principal, nil
	}
	return strategy.Attempt(ctx, identifier, secret)
}

func (r *identityResolverImpl) PrincipalByID(ctx context.Context, id string) (*model.Principal, error) {
	profile, err := r.identityClient.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("principal %s: %w", id, err)
	}
	return principalFromProfile(profile), nil
}

func principalFromProfile(profile *client.UserProfile) *model.Principal {
	first, last := splitName(profile.Name)
	return &model.Principal{
		ID:        profile.ID,
		Email:     profile.Email,
		FirstName: first,
		LastName:  last,
		Roles:     profile.Roles,
	}
}

func splitName(name string) (string, string) {
	first, last, found := strings.Cut(strings.TrimSpace(name), " ")
	if !found {
		return first, ""
	}
	return first, last
}

// tokenStrategy succeeds only for secrets that are backend-issued
// application tokens, presented as a direct credential pair to the who-am-i
// endpoint.
type tokenStrategy struct {
	identityClient client.IdentityClient
}

func (s *tokenStrategy) Attempt(ctx context.Context, identifier, secret string) (*model.Principal, error) {
	profile, err := s.identityClient.Me(ctx, identifier, secret)
	if errors.Is(err, apperr.ErrInvalidCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return principalFromProfile(profile), nil
}

// formLoginStrategy emulates the backend's native login form, then confirms
// the profile through a privileged search with the system's own service
// credentials.
type formLoginStrategy struct {
	identityClient client.IdentityClient
	logger         *slog.Logger
}

func (s *formLoginStrategy) Attempt(ctx context.Context, identifier, secret string) (*model.Principal, error) {
	ok, err := s.identityClient.FormLogin(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if profile := s.confirmProfile(ctx, identifier); profile != nil {
		return principalFromProfile(profile), nil
	}

	// the login itself was proven valid; a profile we could not confirm
	// degrades to a minimally-populated principal, not a failure
	principal := &model.Principal{
		Roles: []string{model.RoleSubscriber},
	}
	if strings.Contains(identifier, "@") {
		principal.Email = identifier
	}
	return principal, nil
}

// confirmProfile searches by full email first, then by the local part, and
// only trusts a candidate whose email matches the identifier.
func (s *formLoginStrategy) confirmProfile(ctx context.Context, identifier string) *client.UserProfile {
	if candidate := s.search(ctx, identifier, identifier); candidate != nil {
		return candidate
	}

	localPart, _, isEmail := strings.Cut(identifier, "@")
	if !isEmail {
		return nil
	}
	return s.search(ctx, localPart, identifier)
}

func (s *formLoginStrategy) search(ctx context.Context, query, wantEmail string) *client.UserProfile {
	profiles, err := s.identityClient.SearchUsers(ctx, query)
	if err != nil {
		s.logger.Warn("privileged profile search failed", "error", err)
		return nil
	}
	for _, profile := range profiles {
		if strings.EqualFold(profile.Email, wantEmail) {
			return profile
		}
	}
	return nil
}
