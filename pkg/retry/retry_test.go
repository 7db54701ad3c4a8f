package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollStopsWhenDone(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), Options{MaxAttempts: 5, Interval: time.Millisecond}, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		calls++
		return attempt == 3, 0, nil
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestPollExhausted(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), Options{MaxAttempts: 4, Interval: time.Millisecond}, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		calls++
		return false, 0, nil
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestPollPropagatesCheckError(t *testing.T) {
	boom := errors.New("processing failed")
	calls := 0
	err := Poll(context.Background(), Options{MaxAttempts: 10, Interval: time.Millisecond}, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		calls++
		if attempt == 2 {
			return false, 0, boom
		}
		return false, 0, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected polling to stop after the error, got %d calls", calls)
	}
}

func TestPollCapsSuggestedInterval(t *testing.T) {
	start := time.Now()
	err := Poll(context.Background(), Options{MaxAttempts: 2, Interval: time.Millisecond, MaxInterval: 5 * time.Millisecond}, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		return attempt == 2, time.Hour, nil
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("suggested interval was not capped")
	}
}

func TestPollHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Poll(ctx, Options{MaxAttempts: 3, Interval: time.Hour}, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		cancel()
		return false, 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
