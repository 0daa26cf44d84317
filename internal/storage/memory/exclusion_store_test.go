package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-scan/internal/storage"
)

func TestExclusionStore(t *testing.T) {
	store := NewExclusionStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, storage.ExcludedAddress{Address: "Zzz", Label: "treasury"}))
	require.NoError(t, store.Insert(ctx, storage.ExcludedAddress{Address: "Aaa"}))

	assert.ErrorIs(t, store.Insert(ctx, storage.ExcludedAddress{Address: "Aaa"}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, storage.ExcludedAddress{}), storage.ErrInvalidInput)

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Aaa", got[0].Address)
	assert.Equal(t, "treasury", got[1].Label)
}
