package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"maktaba-storefront/internal/domain"
	tokenrepo "maktaba-storefront/internal/repository/token"
)

type tokenManager struct {
	repo tokenrepo.Repository
	now  func() time.Time
}

func newTokenManager(repo tokenrepo.Repository, now func() time.Time) *tokenManager {
	return &tokenManager{
		repo: repo,
		now:  now,
	}
}

func (m *tokenManager) Issue(ctx context.Context, sessionID string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := m.now().Add(ttl)
	for i := 0; i < 5; i++ {
		token, err := randomToken()
		if err != nil {
			return "", time.Time{}, err
		}
		err = m.repo.Create(ctx, tokenrepo.Token{
			Token:     token,
			SessionID: sessionID,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			return token, expiresAt, nil
		}
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return "", time.Time{}, err
	}
	return "", time.Time{}, errors.New("token collision")
}

func (m *tokenManager) Validate(ctx context.Context, token string) (*tokenrepo.Token, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	meta, err := m.repo.Get(ctx, token)
	if err != nil {
		if isInvalid(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if m.now().After(meta.ExpiresAt) {
		_ = m.repo.Delete(ctx, token)
		return nil, ErrInvalidToken
	}
	return meta, nil
}

func (m *tokenManager) Touch(ctx context.Context, token string, ttl time.Duration) error {
	return m.repo.Extend(ctx, token, m.now().Add(ttl))
}

func (m *tokenManager) Delete(ctx context.Context, token string) error {
	return m.repo.Delete(ctx, token)
}

func (m *tokenManager) Sweep(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.now())
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
