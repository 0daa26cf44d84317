package holders

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/solana"
	"solana-holder-scan/internal/solana/stub"
	"solana-holder-scan/internal/storage"
	"solana-holder-scan/internal/storage/memory"
)

func account(owner string, ui int64) solana.TokenAccount {
	return solana.TokenAccount{Owner: owner, UIAmount: decimal.NewFromInt(ui), Amount: decimal.NewFromInt(ui), Decimals: 0}
}

func TestAggregateHolders_SumsPerOwner(t *testing.T) {
	accounts := []solana.TokenAccount{account("A", 6), account("A", 6), account("B", 3)}

	got := AggregateHolders(accounts, decimal.NewFromInt(1), decimal.NewFromInt(10), nil)

	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Address)
	assert.True(t, got[0].ValueUSD.Equal(decimal.NewFromInt(12)))
}

func TestAggregateHolders_Excluded(t *testing.T) {
	accounts := []solana.TokenAccount{account("A", 50), account("B", 20)}
	excluded := NewExclusionSet([]string{"A"})

	got := AggregateHolders(accounts, decimal.NewFromInt(1), decimal.NewFromInt(10), excluded.Contains)

	assert.Equal(t, []string{"B"}, domain.Addresses(got))
}

func TestAggregateHolders_PriceAndOrdering(t *testing.T) {
	accounts := []solana.TokenAccount{
		account("small", 1000),
		account("big", 5000),
		account("tie", 1000),
		{Owner: "", UIAmount: decimal.NewFromInt(99999)},
	}

	got := AggregateHolders(accounts, decimal.RequireFromString("0.01"), decimal.NewFromInt(10), nil)

	assert.Equal(t, []string{"big", "small", "tie"}, domain.Addresses(got))
	assert.Equal(t, "50", got[0].ValueUSD.String())
}

func TestAggregateHolders_ThresholdInclusive(t *testing.T) {
	got := AggregateHolders([]solana.TokenAccount{account("A", 10)}, decimal.NewFromInt(1), decimal.NewFromInt(10), nil)
	assert.Len(t, got, 1)
}

func TestScanner_Scan(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddHolders("mint",
		account("A", 6), account("A", 6), account("B", 3),
		account(solana.TokenProgramID, 1000),
	)

	s := NewScanner(rpc, Options{Logger: zerolog.Nop()})
	got, err := s.Scan(context.Background(), "mint", decimal.NewFromInt(1))

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, domain.Addresses(got))
	assert.Equal(t, 1, rpc.Calls(stub.MethodScanTokenHolders))
}

func TestScanner_ExcludeOffCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	wallet := base58.Encode(pub)
	pda := base58.Encode(append([]byte{2}, make([]byte, 31)...)) // y = 2 is not on the curve

	rpc := stub.NewRPCClient()
	rpc.AddHolders("mint", account(wallet, 100), account(pda, 100))

	s := NewScanner(rpc, Options{ExcludeOffCurve: true, Excluded: NewExclusionSet()})
	got, err := s.Scan(context.Background(), "mint", decimal.NewFromInt(1))

	require.NoError(t, err)
	assert.Equal(t, []string{wallet}, domain.Addresses(got))
}

func TestScanner_RPCFailure(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddAccountInfo("mint", &solana.AccountInfo{Owner: solana.TokenProgramID})
	boom := errors.New("boom")
	rpc.Fail(stub.MethodScanTokenHolders, boom, -1)

	_, err := NewScanner(rpc, Options{}).Scan(context.Background(), "mint", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, boom)
}

func TestScanner_MintNotFound(t *testing.T) {
	rpc := stub.NewRPCClient()

	_, err := NewScanner(rpc, Options{}).Scan(context.Background(), "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrMintNotFound)
	assert.Zero(t, rpc.Calls(stub.MethodScanTokenHolders))
}

func TestScanner_NotTokenMint(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddAccountInfo("wallet", &solana.AccountInfo{Owner: "11111111111111111111111111111111", Lamports: 5})

	_, err := NewScanner(rpc, Options{}).Scan(context.Background(), "wallet", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotTokenMint)
	assert.Zero(t, rpc.Calls(stub.MethodScanTokenHolders))
}

func TestLoadExclusionSet(t *testing.T) {
	store := memory.NewExclusionStore()
	require.NoError(t, store.Insert(context.Background(), storage.ExcludedAddress{Address: "FromStore"}))

	set, err := LoadExclusionSet(context.Background(), store, []string{" Extra ", ""})
	require.NoError(t, err)

	assert.True(t, set.Contains("FromStore"))
	assert.True(t, set.Contains("Extra"))
	assert.True(t, set.Contains("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"))
	assert.Equal(t, len(DefaultExcludedAddresses)+2, set.Len())

	set, err = LoadExclusionSet(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultExcludedAddresses), set.Len())
}
