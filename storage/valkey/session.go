package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/giantswarm/storefront/storage"
)

// sessionJSON is the stored form of a session. The token itself is only
// part of the key hash.
type sessionJSON struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SaveSession implements storage.SessionStore.
func (s *Store) SaveSession(ctx context.Context, session *storage.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("%w: session token is required", storage.ErrInvalidInput)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl < time.Second {
		return fmt.Errorf("%w: session already expired", storage.ErrInvalidInput)
	}

	data, err := json.Marshal(sessionJSON{CreatedAt: session.CreatedAt, ExpiresAt: session.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(s.sessionKey(session.Token)).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("Saved admin session", "expires_at", session.ExpiresAt)
	return nil
}

// GetSession implements storage.SessionStore.
func (s *Store) GetSession(ctx context.Context, token string) (*storage.Session, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.sessionKey(token)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session := &storage.Session{Token: token, CreatedAt: j.CreatedAt, ExpiresAt: j.ExpiresAt}
	if session.IsExpired(time.Now()) {
		return nil, storage.ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession implements storage.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.sessionKey(token)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
