package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-scan/internal/analyzer"
	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/stream"
)

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f fakePrices) Resolve(context.Context, string, string) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakeHolders struct {
	holders []domain.Holder
	err     error
}

func (f fakeHolders) Scan(context.Context, string, decimal.Decimal) ([]domain.Holder, error) {
	return f.holders, f.err
}

type analyzeFunc func(ctx context.Context, wallet string, p analyzer.Params) (domain.WalletResult, error)

func (f analyzeFunc) Analyze(ctx context.Context, wallet string, p analyzer.Params) (domain.WalletResult, error) {
	return f(ctx, wallet, p)
}

func qualifyAll(_ context.Context, wallet string, _ analyzer.Params) (domain.WalletResult, error) {
	return domain.WalletResult{Address: wallet, Qualified: true}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []stream.Event
	err    error
	// failAfter closes the sink after that many events when > 0.
	failAfter int
}

func (s *recordingSink) Send(ctx context.Context, ev stream.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		return stream.ErrClosed
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) progress() []stream.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stream.ProgressEvent
	for _, ev := range s.events {
		if p, ok := ev.(stream.ProgressEvent); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.EventName()
	}
	return out
}

func makeHolders(n int) []domain.Holder {
	out := make([]domain.Holder, n)
	for i := range out {
		out[i] = domain.Holder{Address: fmt.Sprintf("w%02d", i), ValueUSD: decimal.NewFromInt(100)}
	}
	return out
}

func newTestOrchestrator(holders []domain.Holder, a WalletAnalyzer) *Orchestrator {
	return New(Options{
		Prices:    fakePrices{price: decimal.RequireFromString("0.5")},
		Holders:   fakeHolders{holders: holders},
		Analyzer:  a,
		GroupSize: 20,
	})
}

func TestOrchestrator_Run_ProgressPerGroup(t *testing.T) {
	sink := &recordingSink{}
	orch := newTestOrchestrator(makeHolders(45), analyzeFunc(qualifyAll))

	if err := orch.Run(context.Background(), domain.AnalysisRequest{Mint: "mint"}, sink); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	progress := sink.progress()
	if len(progress) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(progress))
	}
	for i, want := range []int{20, 40, 45} {
		if progress[i].Progress != want {
			t.Errorf("progress[%d] = %d, want %d", i, progress[i].Progress, want)
		}
		if progress[i].Total != 45 {
			t.Errorf("progress[%d].Total = %d, want 45", i, progress[i].Total)
		}
	}

	want := []string{"price", "holders", "progress", "batch", "progress", "batch", "progress", "batch", "done"}
	got := sink.names()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	last := sink.events[len(sink.events)-1].(stream.DoneEvent)
	if !last.Done || last.TotalResults != 45 {
		t.Errorf("unexpected done event: %+v", last)
	}
	batch := sink.events[7].(stream.BatchEvent)
	if batch.BatchNumber != 3 || batch.TotalBatches != 3 || len(batch.Results) != 5 {
		t.Errorf("unexpected last batch: number=%d total=%d results=%d", batch.BatchNumber, batch.TotalBatches, len(batch.Results))
	}
	if sink.events[0].(stream.PriceEvent).TokenPrice != 0.5 {
		t.Errorf("unexpected price event: %+v", sink.events[0])
	}
}

func TestOrchestrator_Run_ReasonCountsAndErrors(t *testing.T) {
	sink := &recordingSink{}
	a := analyzeFunc(func(_ context.Context, wallet string, _ analyzer.Params) (domain.WalletResult, error) {
		switch wallet {
		case "w00":
			return domain.Disqualified(wallet, domain.ReasonHighBalance), nil
		case "w01":
			return domain.Disqualified(wallet, domain.ReasonLowAccounts), nil
		case "w02":
			return domain.WalletResult{}, errors.New("retries exhausted")
		}
		return domain.Disqualified(wallet, domain.ReasonNoPumpfunActivity), nil
	})
	orch := newTestOrchestrator(makeHolders(4), a)

	if err := orch.Run(context.Background(), domain.AnalysisRequest{Mint: "mint"}, sink); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []string{"price", "holders", "progress", "done"}
	if got := sink.names(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v (no batch event without qualified wallets)", got, want)
	}
	p := sink.progress()[0]
	expected := stream.ProgressEvent{Progress: 4, Total: 4, HighBalance: 1, LowAccounts: 1, Error: 1, NoPumpfunActivity: 1}
	if p != expected {
		t.Errorf("progress = %+v, want %+v", p, expected)
	}
}

func TestOrchestrator_Run_CancelMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	a := analyzeFunc(func(ctx context.Context, wallet string, p analyzer.Params) (domain.WalletResult, error) {
		if wallet == "w25" {
			cancel()
			return domain.WalletResult{}, ctx.Err()
		}
		return qualifyAll(ctx, wallet, p)
	})
	orch := newTestOrchestrator(makeHolders(45), a)

	if err := orch.Run(ctx, domain.AnalysisRequest{Mint: "mint"}, sink); err != nil {
		t.Fatalf("expected nil on cancellation, got: %v", err)
	}

	want := []string{"price", "holders", "progress", "batch"}
	if got := sink.names(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	for _, p := range sink.progress() {
		if p.Progress > 20 {
			t.Errorf("progress emitted after cancellation: %+v", p)
		}
	}
}

func TestOrchestrator_Run_SinkClosed(t *testing.T) {
	var calls sync.Map
	a := analyzeFunc(func(ctx context.Context, wallet string, p analyzer.Params) (domain.WalletResult, error) {
		calls.Store(wallet, true)
		return qualifyAll(ctx, wallet, p)
	})
	sink := &recordingSink{failAfter: 3}
	orch := newTestOrchestrator(makeHolders(45), a)

	if err := orch.Run(context.Background(), domain.AnalysisRequest{Mint: "mint"}, sink); err != nil {
		t.Fatalf("expected nil when consumer leaves, got: %v", err)
	}
	if _, ok := calls.Load("w20"); ok {
		t.Error("second group analyzed after the consumer left")
	}
	if n := len(sink.names()); n != 3 {
		t.Errorf("expected 3 delivered events, got %d", n)
	}
}

func TestOrchestrator_Run_PriceFailure(t *testing.T) {
	sink := &recordingSink{}
	orch := New(Options{
		Prices:   fakePrices{err: errors.New("price unavailable")},
		Holders:  fakeHolders{},
		Analyzer: analyzeFunc(qualifyAll),
	})

	err := orch.Run(context.Background(), domain.AnalysisRequest{Mint: "mint"}, sink)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected only an error event, got %v", sink.names())
	}
	ev, ok := sink.events[0].(stream.ErrorEvent)
	if !ok || ev.Error == "" {
		t.Errorf("expected error event, got %+v", sink.events[0])
	}
}

func TestOrchestrator_Run_UsesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLogger := zerolog.New(&buf).With().Str("request_id", "req-1").Logger()
	ctx := reqLogger.WithContext(context.Background())

	orch := newTestOrchestrator(makeHolders(1), analyzeFunc(func(ctx context.Context, wallet string, _ analyzer.Params) (domain.WalletResult, error) {
		zerolog.Ctx(ctx).Info().Str("wallet", wallet).Msg("wallet visited")
		return domain.WalletResult{Address: wallet, Qualified: true}, nil
	}))

	if err := orch.Run(ctx, domain.AnalysisRequest{Mint: "mint"}, &recordingSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sawWallet, sawBatch bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["request_id"] != "req-1" || entry["mint"] != "mint" {
			t.Errorf("log line missing request fields: %s", line)
		}
		switch entry["message"] {
		case "wallet visited":
			sawWallet = true
		case "batch analyzed":
			sawBatch = entry["component"] == "orchestrator"
		}
	}
	if !sawWallet || !sawBatch {
		t.Errorf("expected wallet and batch log lines, got:\n%s", buf.String())
	}
}

func TestOrchestrator_Run_InvalidRequest(t *testing.T) {
	sink := &recordingSink{}
	orch := newTestOrchestrator(nil, analyzeFunc(qualifyAll))

	err := orch.Run(context.Background(), domain.AnalysisRequest{Mint: "  "}, sink)
	if !errors.Is(err, domain.ErrMissingMint) {
		t.Fatalf("expected ErrMissingMint, got %v", err)
	}
	if got := sink.names(); fmt.Sprint(got) != "[error]" {
		t.Errorf("events = %v", got)
	}
}

func TestOrchestrator_Run_NoHolders(t *testing.T) {
	sink := &recordingSink{}
	orch := newTestOrchestrator(nil, analyzeFunc(qualifyAll))

	if err := orch.Run(context.Background(), domain.AnalysisRequest{Mint: "mint"}, sink); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got := sink.names(); fmt.Sprint(got) != "[price holders done]" {
		t.Errorf("events = %v", got)
	}
}

func TestOrchestrator_Run_RequestOverridesDefaults(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []analyzer.Params
	)
	a := analyzeFunc(func(ctx context.Context, wallet string, p analyzer.Params) (domain.WalletResult, error) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
		return qualifyAll(ctx, wallet, p)
	})
	orch := New(Options{
		Prices:   fakePrices{price: decimal.NewFromInt(2)},
		Holders:  fakeHolders{holders: makeHolders(1)},
		Analyzer: a,
		Defaults: Defaults{MinAccounts: 5, MaxSolBalance: 1, RequireActivity: true},
	})

	minAccounts := 10
	requireActivity := false
	req := domain.AnalysisRequest{Mint: " mint ", MinAccounts: &minAccounts, RequireActivity: &requireActivity}
	if err := orch.Run(context.Background(), req, &recordingSink{}); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(seen))
	}
	p := seen[0]
	if p.Mint != "mint" || p.MinAccounts != 10 || p.MaxSolBalance != 1 || p.RequireActivity {
		t.Errorf("unexpected params: %+v", p)
	}
	if !p.TokenPrice.Equal(decimal.NewFromInt(2)) {
		t.Errorf("token price = %s, want 2", p.TokenPrice)
	}
}

func TestPartition(t *testing.T) {
	wallets := make([]string, 45)
	groups := Partition(wallets, 20)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	sizes := []int{len(groups[0]), len(groups[1]), len(groups[2])}
	if fmt.Sprint(sizes) != "[20 20 5]" {
		t.Errorf("group sizes = %v", sizes)
	}
	if len(Partition(nil, 20)) != 0 {
		t.Error("expected no groups for no wallets")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateBatching, "batching"},
		{StateCancelled, "cancelled"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
