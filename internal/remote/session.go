package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// SessionOpts configures a Session.
type SessionOpts struct {
	BaseURL      string
	APIKey       string
	AccessToken  string
	RefreshToken string
	UserID       string
	Timeout      time.Duration
	// OnRefresh is called with the rotated tokens after a successful refresh.
	OnRefresh func(Tokens)
}

// Tokens is a snapshot of the session credentials.
type Tokens struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session holds the user's tokens and refreshes them on demand.
type Session struct {
	httpClient *resty.Client

	mu           sync.RWMutex
	user         User
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	onRefresh    func(Tokens)

	refreshes singleflight.Group
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// NewSession creates a session from previously issued tokens.
func NewSession(opts SessionOpts) *Session {
	s := &Session{
		user:         User{ID: opts.UserID},
		accessToken:  opts.AccessToken,
		refreshToken: opts.RefreshToken,
		onRefresh:    opts.OnRefresh,
	}
	s.httpClient = resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("apikey", opts.APIKey).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		s.httpClient.SetTimeout(opts.Timeout)
	}
	return s
}

// CurrentUser returns the authenticated user.
func (s *Session) CurrentUser() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token, which rotates on every
// refresh.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt returns when the access token expires. Zero if unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// RefreshSession exchanges the refresh token for a new token pair.
// Concurrent calls share one exchange, so a rotated refresh token is never
// sent twice.
func (s *Session) RefreshSession(ctx context.Context) error {
	_, err, _ := s.refreshes.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Session) refresh(ctx context.Context) error {
	refreshToken := s.RefreshToken()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token")
	}

	var result tokenResponse
	_, err := handleError(s.httpClient.NewRequest().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&result).
		Post("/auth/v1/token"))
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("token refresh returned no access token")
	}

	s.mu.Lock()
	s.accessToken = result.AccessToken
	if result.RefreshToken != "" {
		s.refreshToken = result.RefreshToken
	}
	if result.User.ID != "" {
		s.user = result.User
	}
	if result.ExpiresIn > 0 {
		s.expiresAt = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}

	tokens := Tokens{
		UserID:       s.user.ID,
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		ExpiresAt:    s.expiresAt,
	}
	s.mu.Unlock()

	log.Debug().Str("userId", tokens.UserID).Time("expiresAt", tokens.ExpiresAt).Msg("session refreshed")
	if s.onRefresh != nil {
		s.onRefresh(tokens)
	}
	return nil
}
