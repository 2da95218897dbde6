// Package store implements the durable relational state store (§4.2) on
// top of internal/database's sqlite connection wrapper: normalized assets,
// active offers, trading pairs, historical orderbook snapshots, and
// indexer cursor state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stellar-aggregon/aggregon/internal/database"
	"github.com/stellar-aggregon/aggregon/internal/domain"
)

// Store implements domain.StateStore against a single state database.
type Store struct {
	db *database.DB
}

// New wraps an already-opened, already-migrated state database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Open opens (and migrates) the state database at path.
func Open(path string) (*Store, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    "state",
	})
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate state database: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying database wrapper for maintenance jobs that need
// WAL checkpoints, integrity checks, or stats (internal/reliability).
func (s *Store) DB() *database.DB { return s.db }

// UpsertAsset resolves an asset to its interned row id, inserting it if
// unseen. Assets are immutable once minted (§3).
func (s *Store) UpsertAsset(ctx context.Context, a domain.Asset) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (tag, code, issuer) VALUES (?, ?, ?)
		ON CONFLICT (tag, code, issuer) DO NOTHING`,
		string(a.Tag), a.Code, a.Issuer,
	)
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreError, "store_error", "upsert asset", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM assets WHERE tag = ? AND code = ? AND issuer = ?`,
		string(a.Tag), a.Code, a.Issuer,
	).Scan(&id)
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreError, "store_error", "read interned asset id", err)
	}
	return id, nil
}

func (s *Store) assetID(ctx context.Context, tx *sql.Tx, a domain.Asset) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO assets (tag, code, issuer) VALUES (?, ?, ?)
		ON CONFLICT (tag, code, issuer) DO NOTHING`,
		string(a.Tag), a.Code, a.Issuer,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM assets WHERE tag = ? AND code = ? AND issuer = ?`,
		string(a.Tag), a.Code, a.Issuer,
	).Scan(&id)
	return id, err
}

func (s *Store) assetByID(ctx context.Context, id int64) (domain.Asset, error) {
	var tag, code, issuer string
	err := s.db.QueryRowContext(ctx, `SELECT tag, code, issuer FROM assets WHERE id = ?`, id).
		Scan(&tag, &code, &issuer)
	if err != nil {
		return domain.Asset{}, err
	}
	return domain.Asset{Tag: domain.AssetTag(tag), Code: code, Issuer: issuer}, nil
}

// GetCursor reads a scalar value from ingestion_state.
func (s *Store) GetCursor(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM ingestion_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.Wrap(domain.KindStoreError, "store_error", "read cursor", err)
	}
	return value, true, nil
}

// SetCursor writes a scalar value to ingestion_state, mutated only by the
// indexer (§3).
func (s *Store) SetCursor(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Wrap(domain.KindStoreError, "store_error", "write cursor", err)
	}
	return nil
}

// ClearCursor deletes a cursor key, used on cold-start reset (§4.3).
func (s *Store) ClearCursor(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingestion_state WHERE key = ?`, key)
	if err != nil {
		return domain.Wrap(domain.KindStoreError, "store_error", "clear cursor", err)
	}
	return nil
}
