package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// CredentialSource holds the current access/refresh token pair and tells
// subscribers when the access token changes.
type CredentialSource struct {
	store     ports.TokenStore
	refresher ports.TokenRefresher
	resolver  ports.IdentityResolver
	logger    *slog.Logger

	mu   sync.RWMutex
	cred domain.Credential

	subMu  sync.Mutex
	subs   map[int]func(domain.Credential)
	nextID int

	// refreshMu serializes refresh calls. A caller that waited on it while
	// another refresh replaced the token reuses that result.
	refreshMu sync.Mutex
}

var _ ports.IdentitySource = (*CredentialSource)(nil)

// NewCredentialSource creates a credential source. store and refresher may be nil.
func NewCredentialSource(
	store ports.TokenStore,
	refresher ports.TokenRefresher,
	resolver ports.IdentityResolver,
	logger *slog.Logger,
) *CredentialSource {
	return &CredentialSource{
		store:     store,
		refresher: refresher,
		resolver:  resolver,
		logger:    logging.Component(logger, "credentials"),
		subs:      make(map[int]func(domain.Credential)),
	}
}

// Current returns the current credential.
func (s *CredentialSource) Current() domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// AccessToken returns the current access token, or "" when absent.
func (s *CredentialSource) AccessToken() string {
	return s.Current().AccessToken
}

// Set replaces the credential and persists it to the token store.
func (s *CredentialSource) Set(ctx context.Context, cred domain.Credential) error {
	s.swap(cred)
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear drops both tokens.
func (s *CredentialSource) Clear(ctx context.Context) error {
	s.swap(domain.Credential{})
	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Load reads the credential from the token store when none is held in memory.
func (s *CredentialSource) Load(ctx context.Context) error {
	if !s.Current().IsZero() || s.store == nil {
		return nil
	}

	cred, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if cred.IsZero() {
		return nil
	}

	s.swap(cred)
	s.logger.Debug("credential loaded from store")
	return nil
}

// Refresh exchanges the refresh token for a new access token. On failure
// both tokens are cleared, so callers fall back to the no-credential path.
// Callers that raced on the same stale token share one exchange.
func (s *CredentialSource) Refresh(ctx context.Context) (domain.Credential, error) {
	stale := s.AccessToken()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	current := s.Current()
	if !current.IsZero() && current.AccessToken != stale {
		return current, nil
	}
	if current.RefreshToken == "" || s.refresher == nil {
		return domain.Credential{}, apperrors.ErrNoCredential
	}

	next, err := s.refresher.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed, clearing credential", "error", err)
		if clearErr := s.Clear(ctx); clearErr != nil {
			s.logger.Error("failed to clear credential", "error", clearErr)
		}
		return domain.Credential{}, fmt.Errorf("refresh token: %w", err)
	}

	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := s.Set(ctx, next); err != nil {
		s.logger.Error("failed to persist refreshed credential", "error", err)
	}
	return next, nil
}

// Identity parses the principal out of the current access token.
func (s *CredentialSource) Identity() (domain.Identity, error) {
	token := s.AccessToken()
	if token == "" {
		return domain.Identity{}, apperrors.ErrNoCredential
	}
	return s.resolver.Resolve(token)
}

// Subscribe registers fn to run after every access-token change. The
// returned function removes the subscription.
func (s *CredentialSource) Subscribe(fn func(domain.Credential)) (dispose func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *CredentialSource) swap(cred domain.Credential) {
	s.mu.Lock()
	changed := s.cred.AccessToken != cred.AccessToken
	s.cred = cred
	s.mu.Unlock()

	if !changed {
		return
	}

	s.subMu.Lock()
	fns := make([]func(domain.Credential), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(cred)
	}
}
