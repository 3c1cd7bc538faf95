package postgres

import (
	"context"
	"fmt"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// SymbolProfileStore implements storage.SymbolProfileStore using PostgreSQL.
type SymbolProfileStore struct {
	pool *Pool
}

// NewSymbolProfileStore creates a new SymbolProfileStore.
func NewSymbolProfileStore(pool *Pool) *SymbolProfileStore {
	return &SymbolProfileStore{pool: pool}
}

var _ storage.SymbolProfileStore = (*SymbolProfileStore)(nil)

// Upsert inserts or replaces the profile for p.Symbol.
func (s *SymbolProfileStore) Upsert(ctx context.Context, p *domain.SymbolProfile) error {
	if p == nil || p.Symbol == "" {
		return storage.ErrInvalidInput
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO symbol_profiles (symbol, float_shares, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE
		SET float_shares = EXCLUDED.float_shares, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, p.Symbol, p.FloatShares, updatedAt); err != nil {
		return fmt.Errorf("upsert symbol profile: %w", err)
	}
	return nil
}

// Get retrieves a profile. Returns ErrNotFound if not exists.
func (s *SymbolProfileStore) Get(ctx context.Context, symbol string) (*domain.SymbolProfile, error) {
	query := `SELECT symbol, float_shares, updated_at FROM symbol_profiles WHERE symbol = $1`

	var p domain.SymbolProfile
	err := s.pool.QueryRow(ctx, query, symbol).Scan(&p.Symbol, &p.FloatShares, &p.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get symbol profile: %w", err)
	}
	return &p, nil
}

// List returns all profiles ordered by symbol.
func (s *SymbolProfileStore) List(ctx context.Context) ([]*domain.SymbolProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, float_shares, updated_at FROM symbol_profiles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list symbol profiles: %w", err)
	}
	defer rows.Close()

	var result []*domain.SymbolProfile
	for rows.Next() {
		var p domain.SymbolProfile
		if err := rows.Scan(&p.Symbol, &p.FloatShares, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan symbol profile row: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
