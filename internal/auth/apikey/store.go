package apikey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS api_keys (
	id          BIGSERIAL PRIMARY KEY,
	key_hash    TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	rate_limit  INTEGER NOT NULL DEFAULT 0,
	is_active   BOOLEAN NOT NULL DEFAULT true,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ
)`

// Store keeps keys in the api_keys table.
type Store struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, schema)
}

func (s *Store) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var (
		info      KeyInfo
		id        int64
		expiresAt sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, rate_limit, created_at, expires_at
		 FROM api_keys WHERE key_hash = $1 AND is_active`,
		HashKey(rawKey),
	).Scan(&id, &info.Name, &info.RateLimit, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	info.ID = fmt.Sprintf("db:%d", id)
	if expiresAt.Valid {
		if !expiresAt.Time.After(s.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// Create stores a new key and returns the raw key, which cannot be
// recovered later.
func (s *Store) Create(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, *KeyInfo, error) {
	raw, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	info := &KeyInfo{Name: name, RateLimit: rateLimit, ExpiresAt: expiresAt}
	var id int64
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, name, rate_limit, expires_at)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		HashKey(raw), name, rateLimit, expiry,
	).Scan(&id, &info.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("creating api key: %w", err)
	}
	info.ID = fmt.Sprintf("db:%d", id)
	s.logger.Info("api key created", "id", info.ID, "name", name, "rate_limit", rateLimit)
	return raw, info, nil
}

// Revoke deactivates the key with the given numeric id.
func (s *Store) Revoke(ctx context.Context, id int64) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidKey
	}
	s.logger.Info("api key revoked", "id", id)
	return nil
}

// List returns active keys, newest first.
func (s *Store) List(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, rate_limit, created_at, expires_at
		 FROM api_keys WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]KeyInfo, 0)
	for rows.Next() {
		var (
			k         KeyInfo
			id        int64
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&id, &k.Name, &k.RateLimit, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		k.ID = fmt.Sprintf("db:%d", id)
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
