package store

import (
	"context"
	"time"
)

// RevokeToken records a bearer token id as logged out until it expires.
func (s *Store) RevokeToken(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (id, expires_at) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, expiresAt,
	)
	return err
}

// IsTokenRevoked reports whether the token id was revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// CleanupRevokedTokens drops revocations whose tokens have expired anyway.
func (s *Store) CleanupRevokedTokens(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now())
	return err
}
