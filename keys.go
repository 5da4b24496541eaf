package filevault

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	tokenBytes     = 32
	tokenPrefixLen = 8
)

// IssueKey verifies the user's password and issues a new API key that
// expires KeyTTL after issuance. The raw token is only ever available in the
// returned IssuedKey.
//
// Error types returned:
//   - ErrUserNotFound: no user has this id
//   - ErrBadPassword: the password does not match
func (s *Service) IssueKey(ctx context.Context, userID int64, password string) (IssuedKey, error) {
	if err := ctx.Err(); err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: %w", err)
	}

	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return IssuedKey{}, fmt.Errorf("issue key: %w", ErrUserNotFound)
	}
	if err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WarnContext(ctx, "api key refused", "user_id", userID)
		return IssuedKey{}, fmt.Errorf("issue key: %w", ErrBadPassword)
	}

	token, err := randomHex(tokenBytes)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: generate token: %w", err)
	}

	key, err := s.repo.CreateAPIKey(ctx, NewAPIKey{
		UserID:    u.ID,
		Prefix:    token[:tokenPrefixLen],
		TokenHash: HashToken(token),
		ExpiresAt: s.now().Add(KeyTTL),
	})
	if err != nil {
		return IssuedKey{}, fmt.Errorf("issue key: %w", err)
	}

	s.log.InfoContext(ctx, "api key issued", "user_id", u.ID, "key_id", key.ID, "expires_at", key.ExpiresAt)
	return IssuedKey{APIKey: key, Token: token}, nil
}

// Authenticate resolves a raw API key to its owner. A key is valid while
// now is strictly before its expiry. Missing, unknown and expired keys all
// return ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (User, error) {
	if rawKey == "" {
		return User{}, fmt.Errorf("authenticate: %w: no api key", ErrUnauthenticated)
	}

	key, err := s.repo.GetAPIKeyByHash(ctx, HashToken(rawKey))
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("authenticate: %w: unknown api key", ErrUnauthenticated)
	}
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}

	if !s.now().Before(key.ExpiresAt) {
		return User{}, fmt.Errorf("authenticate: %w: api key expired", ErrUnauthenticated)
	}

	u, err := s.repo.GetUser(ctx, key.UserID)
	if errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("authenticate: %w: owner missing", ErrUnauthenticated)
	}
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}
	return u, nil
}

// PruneExpiredKeys deletes every key whose expiry has passed and reports
// how many were removed.
func (s *Service) PruneExpiredKeys(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("prune keys: %w", err)
	}

	n, err := s.repo.DeleteExpiredAPIKeys(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune keys: %w", err)
	}
	return n, nil
}
