package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/solana"
	"solana-holder-scan/internal/solana/stub"
)

const (
	wallet = "Wa11et1111111111111111111111111111111111111"
	mint   = "Mint111111111111111111111111111111111111111"
)

var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

func newTestAnalyzer(rpc solana.RPCClient) *Analyzer {
	return New(rpc, Config{Backoff: solana.Backoff{Base: time.Millisecond, Multiplier: 1}})
}

func tokenAccount(m string, amount int64, decimals uint8) solana.TokenAccount {
	a := decimal.NewFromInt(amount)
	return solana.TokenAccount{Mint: m, Amount: a, Decimals: decimals, UIAmount: a.Shift(-int32(decimals))}
}

func TestAnalyze_HighBalanceShortCircuits(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(wallet, 10*solana.LamportsPerSOL)
	rpc.AddTokenAccounts(wallet, tokenAccount(mint, 0, 6))

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, MaxSolBalance: 5})

	require.NoError(t, err)
	assert.False(t, res.Qualified)
	assert.Equal(t, domain.ReasonHighBalance, res.Reason)
	assert.Equal(t, 10.0, res.SolBalance)
	assert.Equal(t, 0, rpc.Calls(stub.MethodGetTokenAccountsByOwner), "no account enumeration after high balance")
	assert.Equal(t, 0, rpc.Calls(stub.MethodGetSignatures))
}

func TestAnalyze_ClassifiesAndComputesReclaimable(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(wallet, solana.LamportsPerSOL/2)
	rpc.AddTokenAccounts(wallet,
		tokenAccount("other1", 0, 6),
		tokenAccount("other2", 0, 9),
		tokenAccount("nft", 1, 0),
		tokenAccount("other3", 5, 0),
		tokenAccount(mint, 1_500_000, 6),
		tokenAccount(mint, 500_000, 6),
		tokenAccount("other4", 42, 2),
	)

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{
		Mint:          mint,
		TokenPrice:    decimal.RequireFromString("0.25"),
		MinAccounts:   3,
		MaxSolBalance: 1,
	})

	require.NoError(t, err)
	assert.True(t, res.Qualified)
	assert.Equal(t, domain.ReasonNone, res.Reason)
	assert.Equal(t, 7, res.TotalAccounts)
	assert.Equal(t, 2, res.EmptyAccounts)
	assert.Equal(t, 1, res.NFTAccounts)
	assert.Equal(t, 4, res.CleanupAccounts)
	assert.Equal(t, uint64(7*2039280), res.ReclaimableLamports)
	assert.InDelta(t, 0.01427496, res.ReclaimableSOL, 1e-12)
	assert.Equal(t, 2.0, res.TokenBalance)
	assert.Equal(t, 0.5, res.TokenValueUSD)
	assert.Equal(t, 0.5, res.SolBalance)
	assert.Equal(t, 1, rpc.Calls(stub.MethodGetBalance), "balance fetched once and reused")
}

func TestAnalyze_ReclaimableUsesConfiguredRent(t *testing.T) {
	rpc := stub.NewRPCClient()
	for i := 0; i < 5; i++ {
		rpc.AddTokenAccounts(wallet, tokenAccount("m", 0, 0))
	}

	a := New(rpc, Config{RentPerAccountLamports: 1000})
	res, err := a.Analyze(context.Background(), wallet, Params{Mint: mint})

	require.NoError(t, err)
	assert.Equal(t, uint64(5000), res.ReclaimableLamports)
}

func TestAnalyze_LowAccounts(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTokenAccounts(wallet, tokenAccount(mint, 1, 0), tokenAccount("x", 0, 0))

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, MinAccounts: 5})

	require.NoError(t, err)
	assert.False(t, res.Qualified)
	assert.Equal(t, domain.ReasonLowAccounts, res.Reason)
	assert.Equal(t, 2, res.TotalAccounts)
	assert.Zero(t, res.ReclaimableLamports)
}

func TestAnalyze_RequireActivity(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTokenAccounts(wallet, tokenAccount("x", 0, 0))
	rpc.AddSignatures(wallet, []solana.SignatureInfo{
		{Signature: "failed", Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		{Signature: "missing"},
		{Signature: "transfer"},
		{Signature: "pump"},
	})
	rpc.AddTransaction(&solana.Transaction{
		Signature:    "transfer",
		Instructions: []solana.Instruction{{ProgramID: "11111111111111111111111111111111", Data: "3Bxs4h24hBtQy9rw"}},
	})
	rpc.AddTransaction(&solana.Transaction{
		Signature:    "pump",
		Instructions: []solana.Instruction{{ProgramID: "ComputeBudget111111111111111111111111111111"}},
		Inner: []solana.Instruction{{
			ProgramID: PumpFunProgramID,
			Data:      base58.Encode(append(append([]byte{}, buyDiscriminator...), 1, 2, 3, 4)),
		}},
	})

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, RequireActivity: true})

	require.NoError(t, err)
	assert.True(t, res.Qualified)
	assert.LessOrEqual(t, rpc.Calls(stub.MethodGetTransaction), 3, "failed signatures are not fetched")
}

func TestAnalyze_NoActivity(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(wallet, []solana.SignatureInfo{{Signature: "a"}, {Signature: "b"}})
	rpc.AddTransaction(&solana.Transaction{
		Signature:    "a",
		Instructions: []solana.Instruction{{ProgramID: "other", Data: base58.Encode(buyDiscriminator)}},
	})
	rpc.Fail(stub.MethodGetTransaction, errors.New("transaction fetch failed"), 1)

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, RequireActivity: true})

	require.NoError(t, err)
	assert.False(t, res.Qualified)
	assert.Equal(t, domain.ReasonNoPumpfunActivity, res.Reason)
	assert.Equal(t, 0, rpc.Calls(stub.MethodGetTokenAccountsByOwner))
}

func TestAnalyze_FailedTransactionFetchSkipped(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(wallet, []solana.SignatureInfo{{Signature: "broken"}, {Signature: "buy"}})
	rpc.AddTransaction(&solana.Transaction{
		Signature:    "buy",
		Instructions: []solana.Instruction{{ProgramID: PumpFunProgramID, Data: base58.Encode(buyDiscriminator)}},
	})
	rpc.Hook = func(_ context.Context, method, key string) error {
		if method == stub.MethodGetTransaction && key == "broken" {
			return errors.New("transaction fetch failed")
		}
		return nil
	}

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, RequireActivity: true})

	require.NoError(t, err)
	assert.True(t, res.Qualified, "activity in the readable transaction still counts")
}

func TestAnalyze_RetriesWholeUnit(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.SetBalance(wallet, 1)
	rpc.AddTokenAccounts(wallet, tokenAccount("x", 0, 0))
	rpc.Fail(stub.MethodGetBalance, errors.New("node unavailable"), 1)

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, MaxSolBalance: 1})

	require.NoError(t, err)
	assert.True(t, res.Qualified)
	assert.Equal(t, 2, rpc.Calls(stub.MethodGetBalance))
}

func TestAnalyze_SequentialFallback(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTokenAccounts(wallet, tokenAccount(mint, 3, 0))
	rpc.Fail(stub.MethodGetTokenAccountsByOwner, errors.New("timeout"), 1)

	res, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint, TokenPrice: decimal.NewFromInt(2)})

	require.NoError(t, err)
	assert.True(t, res.Qualified)
	assert.Equal(t, 6.0, res.TokenValueUSD)
}

func TestAnalyze_Exhausted(t *testing.T) {
	rpc := stub.NewRPCClient()
	boom := errors.New("boom")
	rpc.Fail(stub.MethodGetTokenAccountsByOwner, boom, -1)

	_, err := newTestAnalyzer(rpc).Analyze(context.Background(), wallet, Params{Mint: mint})

	require.Error(t, err)
	assert.ErrorIs(t, err, solana.ErrRetriesExhausted)
	assert.ErrorIs(t, err, boom)
}

func TestAnalyze_Canceled(t *testing.T) {
	rpc := stub.NewRPCClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalyzer(rpc).Analyze(ctx, wallet, Params{Mint: mint})

	require.Error(t, err)
	assert.True(t, solana.IsCanceled(err))
	assert.Equal(t, 0, rpc.Calls(stub.MethodGetTokenAccountsByOwner))
}

func TestPumpFunOperation(t *testing.T) {
	op, ok := PumpFunOperation(solana.Instruction{ProgramID: PumpFunProgramID, Data: base58.Encode(sellDiscriminator)})
	assert.True(t, ok)
	assert.Equal(t, "sell", op)

	_, ok = PumpFunOperation(solana.Instruction{ProgramID: PumpFunProgramID, Data: base58.Encode([]byte{1, 2, 3, 4, 5, 6, 7, 8})})
	assert.False(t, ok, "unknown discriminator")

	_, ok = PumpFunOperation(solana.Instruction{ProgramID: PumpFunProgramID, Data: base58.Encode([]byte{102, 6, 61})})
	assert.False(t, ok, "short data")

	_, ok = PumpFunOperation(solana.Instruction{ProgramID: PumpFunProgramID, Data: "0OIl"})
	assert.False(t, ok, "invalid base58")

	assert.False(t, HasPumpFunOperation(&solana.Transaction{
		Failed:       true,
		Instructions: []solana.Instruction{{ProgramID: PumpFunProgramID, Data: base58.Encode(sellDiscriminator)}},
	}))
}
