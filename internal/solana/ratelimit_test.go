package solana

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMinIntervalLimiter_SpacesAcquisitions(t *testing.T) {
	const interval = 20 * time.Millisecond
	l := NewMinIntervalLimiter(interval)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != 4 {
		t.Fatalf("expected 4 grants, got %d", len(times))
	}
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	if span := last.Sub(first); span < 3*interval-5*time.Millisecond {
		t.Errorf("expected grants spread over >= %v, got %v", 3*interval, span)
	}
}

func TestMinIntervalLimiter_Canceled(t *testing.T) {
	l := NewMinIntervalLimiter(time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMinIntervalLimiter_Disabled(t *testing.T) {
	l := NewMinIntervalLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("disabled limiter should not wait")
	}
}

func TestMinIntervalLimiter_CanceledWhileQueued(t *testing.T) {
	l := NewMinIntervalLimiter(300 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Acquire(context.Background())
		}()
	}
	t.Cleanup(wg.Wait)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("cancelled Acquire returned after %v, expected promptly", elapsed)
	}
}
