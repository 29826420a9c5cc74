package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"maktaba-storefront/internal/domain"
	tokenrepo "maktaba-storefront/internal/repository/token"
)

var ErrInvalidToken = errors.New("invalid session token")

// Issued is what a client receives when it opens a browsing session.
type Issued struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service issues opaque session tokens. Each token is bound to a session id,
// which keys the anonymous cart in local storage.
type Service struct {
	tokens *tokenManager
	ttl    time.Duration
	logger *slog.Logger
}

func New(repo tokenrepo.Repository, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		tokens: newTokenManager(repo, time.Now),
		ttl:    ttl,
		logger: logger,
	}
}

func (s *Service) Issue(ctx context.Context) (Issued, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(ctx, sessionID, s.ttl)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: token, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// LookupByToken returns the session id behind token and slides its expiry.
// Store failures surface as domain.ErrTransientStore rather than ErrInvalidToken
// so clients do not drop a session that is still valid.
func (s *Service) LookupByToken(ctx context.Context, token string) (string, error) {
	meta, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Touch(ctx, token, s.ttl); err != nil && s.logger != nil {
		s.logger.Warn("session expiry not extended", "session_id", meta.SessionID, "error", err)
	}
	return meta.SessionID, nil
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.tokens.Delete(ctx, token)
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}

// RunJanitor removes expired tokens every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.tokens.Sweep(ctx); err != nil && s.logger != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("session token sweep failed", "error", err)
			}
		}
	}
}

func isInvalid(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, ErrInvalidToken)
}
