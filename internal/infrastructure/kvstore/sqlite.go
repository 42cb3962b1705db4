package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/database"
)

// SQLite is a Store persisted in the kv_fields table.
//
// Expired rows are filtered on read and removed by Purge.
type SQLite struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLite wraps a migrated database. The caller owns db; Close on the
// store does not close it.
func NewSQLite(db *database.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// HGet returns the field value if present and not expired.
func (s *SQLite) HGet(ctx context.Context, hash, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_fields
		 WHERE hash = ? AND field = ? AND (expires_at IS NULL OR expires_at > ?)`,
		hash, field, s.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore get %s/%s: %w", hash, field, err)
	}
	return value, true, nil
}

// HSet stores the value and clears any TTL on the field.
func (s *SQLite) HSet(ctx context.Context, hash, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_fields (hash, field, value, expires_at) VALUES (?, ?, ?, NULL)
		 ON CONFLICT (hash, field) DO UPDATE SET value = excluded.value, expires_at = NULL`,
		hash, field, value,
	)
	if err != nil {
		return fmt.Errorf("kvstore set %s/%s: %w", hash, field, err)
	}
	return nil
}

// HExpire sets a TTL on an existing, unexpired field.
func (s *SQLite) HExpire(ctx context.Context, hash, field string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE kv_fields SET expires_at = ?
		 WHERE hash = ? AND field = ? AND (expires_at IS NULL OR expires_at > ?)`,
		now.Add(ttl).UnixMilli(), hash, field, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("kvstore expire %s/%s: %w", hash, field, err)
	}
	return nil
}

// HDel removes a field.
func (s *SQLite) HDel(ctx context.Context, hash, field string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_fields WHERE hash = ? AND field = ?`, hash, field); err != nil {
		return fmt.Errorf("kvstore delete %s/%s: %w", hash, field, err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_fields WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("kvstore purge: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the database is closed by its owner.
func (s *SQLite) Close() error {
	return nil
}
