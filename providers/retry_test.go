package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Logger: zap.NewNop()}
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := testPolicy(3).Execute(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := testPolicy(3).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &StatusError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := &TransportError{Err: errors.New("connection reset")}
	err := testPolicy(3).Execute(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error back, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExecuteStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := testPolicy(3).Execute(context.Background(), func() error {
		calls++
		return &StatusError{StatusCode: 404}
	})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, Logger: zap.NewNop()}
	err := policy.Execute(ctx, func() error {
		return &StatusError{StatusCode: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil wrapped status 500", &StatusError{StatusCode: 500}, true},
		{"status 429", &StatusError{StatusCode: 429}, true},
		{"status 404", &StatusError{StatusCode: 404}, false},
		{"status 400", &StatusError{StatusCode: 400}, false},
		{"transport", &TransportError{Err: errors.New("timeout")}, true},
		{"plain error", errors.New("decode failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
