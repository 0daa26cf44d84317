package postgres

import (
	"context"
	"fmt"

	"solana-holder-scan/internal/storage"
)

// ExclusionStore implements storage.ExclusionStore using PostgreSQL.
type ExclusionStore struct {
	pool *Pool
}

// NewExclusionStore creates a new PostgreSQL exclusion store.
func NewExclusionStore(pool *Pool) *ExclusionStore {
	return &ExclusionStore{pool: pool}
}

var _ storage.ExclusionStore = (*ExclusionStore)(nil)

// Insert adds an address. Returns ErrDuplicateKey if the address exists.
func (s *ExclusionStore) Insert(ctx context.Context, e storage.ExcludedAddress) error {
	if e.Address == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO excluded_addresses (address, label) VALUES ($1, $2)`,
		e.Address, e.Label,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert excluded address: %w", err)
	}
	return nil
}

// List returns all excluded addresses ordered by address.
func (s *ExclusionStore) List(ctx context.Context) ([]storage.ExcludedAddress, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, label FROM excluded_addresses ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query excluded addresses: %w", err)
	}
	defer rows.Close()

	var out []storage.ExcludedAddress
	for rows.Next() {
		var e storage.ExcludedAddress
		if err := rows.Scan(&e.Address, &e.Label); err != nil {
			return nil, fmt.Errorf("scan excluded address: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate excluded addresses: %w", err)
	}
	return out, nil
}
