package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/labsandbox/go-sdk/backoff"
)

// 谓词为 true 的次数为 n 时，fetch 恰好被调用 n+1 次并返回最后一次获取的值
func TestPollStopsOnPredicate_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	properties.Property("fetch count equals continues plus one", prop.ForAll(
		func(continues int) bool {
			calls := 0
			value, err := Poll(context.Background(),
				func(context.Context) (int, error) {
					calls++
					return calls, nil
				},
				func(v int) bool { return v <= continues },
				WithPollInterval(0), WithMaxWait(time.Minute),
			)
			return err == nil && value == continues+1 && calls == continues+1
		},
		gen.IntRange(0, 30),
	))
	properties.TestingRun(t)
}

func TestPollSetupSequence(t *testing.T) {
	fetch := stateSequence("sb-1", StateSetup, StateSetup, StateReady)
	calls := 0
	details, err := Poll(context.Background(),
		func(ctx context.Context) (*SandboxDetails, error) {
			calls++
			return fetch(ctx, "sb-1")
		},
		IsSetupInProgress,
		WithPollInterval(0),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 fetches, got %d", calls)
	}
	if details.State != StateReady {
		t.Errorf("expected state Ready, got %q", details.State)
	}
}

func TestPollTimeout(t *testing.T) {
	start := time.Now()
	_, err := Poll(context.Background(),
		func(context.Context) (string, error) { return "still running", nil },
		func(string) bool { return true },
		WithPollInterval(10*time.Millisecond), WithMaxWait(50*time.Millisecond),
	)
	if !errors.Is(err, ErrPollingTimeout) {
		t.Fatalf("expected polling timeout, got %v", err)
	}
	var timeoutErr *PollingTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *PollingTimeoutError, got %T", err)
	}
	if timeoutErr.Last != "still running" {
		t.Errorf("expected last value to be attached, got %v", timeoutErr.Last)
	}
	if timeoutErr.Attempts < 2 {
		t.Errorf("expected several attempts, got %d", timeoutErr.Attempts)
	}
	if errors.Is(err, ErrOrchestrationPollingTimeout) || errors.Is(err, ErrCommandPollingTimeout) {
		t.Error("generic poll timeout should not match a specific kind")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %s", elapsed)
	}
}

func TestPollWaitClippedToMaxWait(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := Poll(context.Background(),
		func(context.Context) (int, error) {
			calls++
			return calls, nil
		},
		func(int) bool { return true },
		WithPollInterval(time.Hour), WithMaxWait(50*time.Millisecond),
	)
	if !errors.Is(err, ErrPollingTimeout) {
		t.Fatalf("expected polling timeout, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 fetches, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("sleep was not clipped: %s", elapsed)
	}
}

func TestPollFetchErrorIsFatal(t *testing.T) {
	fetchErr := errors.New("connection refused")
	calls := 0
	_, err := Poll(context.Background(),
		func(context.Context) (int, error) {
			calls++
			return 0, fetchErr
		},
		func(int) bool { return true },
		WithPollInterval(0),
	)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch errors should not be retried, got %d calls", calls)
	}
}

func TestPollContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Poll(ctx,
		func(context.Context) (int, error) { return 0, nil },
		func(int) bool { return true },
		WithPollInterval(time.Hour),
	)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPollCanceledBeforeFirstFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Poll(ctx,
		func(context.Context) (int, error) {
			calls++
			return 0, nil
		},
		func(int) bool { return false },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no fetch, got %d", calls)
	}
}

func TestPollWithBackoffAndOnPoll(t *testing.T) {
	var waits []int
	b := backoff.NewBackoff(func(_ context.Context, opts *backoff.BackoffOptions) time.Duration {
		waits = append(waits, opts.Attempts)
		return time.Millisecond
	})
	var attempts []int
	calls := 0
	_, err := Poll(context.Background(),
		func(context.Context) (int, error) {
			calls++
			return calls, nil
		},
		func(v int) bool { return v < 3 },
		WithBackoff(b), WithOnPoll(func(attempt int) { attempts = append(attempts, attempt) }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(waits) != 2 || waits[0] != 1 || waits[1] != 2 {
		t.Errorf("unexpected backoff attempts: %v", waits)
	}
	if len(attempts) != 3 || attempts[2] != 3 {
		t.Errorf("unexpected poll attempts: %v", attempts)
	}
}

func TestPollLogsTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	_, err := Poll(context.Background(),
		func(context.Context) (int, error) { return 0, nil },
		func(int) bool { return true },
		WithPollInterval(0), WithMaxWait(0), WithPollLogger(zap.New(core)),
	)
	if !errors.Is(err, ErrPollingTimeout) {
		t.Fatalf("expected polling timeout, got %v", err)
	}
	if logs.FilterMessage("polling timed out").Len() != 1 {
		t.Errorf("expected timeout log, got %v", logs.All())
	}
}
