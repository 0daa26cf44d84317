package memory

import (
	"context"
	"sort"
	"sync"

	"solana-holder-scan/internal/storage"
)

// ExclusionStore is an in-memory implementation of storage.ExclusionStore.
type ExclusionStore struct {
	mu   sync.RWMutex
	data map[string]storage.ExcludedAddress // keyed by address
}

// NewExclusionStore creates a new in-memory exclusion store.
func NewExclusionStore() *ExclusionStore {
	return &ExclusionStore{
		data: make(map[string]storage.ExcludedAddress),
	}
}

var _ storage.ExclusionStore = (*ExclusionStore)(nil)

// Insert adds an address. Returns ErrDuplicateKey if the address exists.
func (s *ExclusionStore) Insert(_ context.Context, e storage.ExcludedAddress) error {
	if e.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Address]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[e.Address] = e
	return nil
}

// List returns all excluded addresses ordered by address.
func (s *ExclusionStore) List(_ context.Context) ([]storage.ExcludedAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.ExcludedAddress, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})
	return out, nil
}
