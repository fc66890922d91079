package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewRateLimiter(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	if limiter == nil {
		t.Fatal("Expected non-nil rate limiter")
	}

	if limiter.buckets == nil {
		t.Error("Expected buckets map to be initialized")
	}

	if NewRateLimiter(0, logger).perSec != 5 {
		t.Error("Expected non-positive rate to fall back to 5/s")
	}
}

func TestWait_NewOperation(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	start := time.Now()
	err := limiter.Wait(context.Background(), OpCreate)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	if duration > 100*time.Millisecond {
		t.Errorf("Wait() took too long for new operation: %v", duration)
	}
}

func TestHandleRateLimitResponse_RetryAfter(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	retry := limiter.HandleRateLimitResponse(OpGet, http.Header{"Retry-After": []string{"3"}})

	if retry != 3*time.Second {
		t.Errorf("Expected 3s retry, got %v", retry)
	}

	throttled, blockedUntil := limiter.GetStatus(OpGet)
	if throttled != 1 {
		t.Errorf("Expected throttled 1, got %d", throttled)
	}
	if time.Until(blockedUntil) < 2*time.Second {
		t.Errorf("Expected operation to be blocked for ~3s, blocked until %v", blockedUntil)
	}
}

func TestHandleRateLimitResponse_ExponentialDefault(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	first := limiter.HandleRateLimitResponse(OpDelete, http.Header{})
	second := limiter.HandleRateLimitResponse(OpDelete, http.Header{})

	if first != time.Second {
		t.Errorf("Expected 1s default backoff, got %v", first)
	}
	if second != 2*time.Second {
		t.Errorf("Expected 2s second backoff, got %v", second)
	}

	limiter.RecordSuccess(OpDelete)
	if throttled, _ := limiter.GetStatus(OpDelete); throttled != 0 {
		t.Errorf("Expected throttled reset after success, got %d", throttled)
	}
}

func TestWait_BlocksDuringBackoff(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping rate limit test in short mode")
	}
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	limiter.HandleRateLimitResponse(OpCreate, http.Header{"Retry-After": []string{"1"}})

	start := time.Now()
	if err := limiter.Wait(context.Background(), OpCreate); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}

	if duration := time.Since(start); duration < 900*time.Millisecond {
		t.Errorf("Wait() did not block long enough: waited %v", duration)
	}
}

func TestWait_ContextCancelledDuringBackoff(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	limiter.HandleRateLimitResponse(OpGet, http.Header{"Retry-After": []string{"30"}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx, OpGet)

	if err == nil {
		t.Fatal("Expected Wait() to fail when context expires")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait() ignored context cancellation")
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"429", http.StatusTooManyRequests, "", true},
		{"403 user rate", http.StatusForbidden, `{"error":{"errors":[{"reason":"userRateLimitExceeded"}]}}`, true},
		{"403 rate", http.StatusForbidden, `{"error":{"errors":[{"reason":"rateLimitExceeded"}]}}`, true},
		{"403 permission", http.StatusForbidden, `{"error":{"errors":[{"reason":"insufficientFilePermissions"}]}}`, false},
		{"500", http.StatusInternalServerError, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(100, logger)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(context.Background(), OpCreate); err != nil {
				t.Errorf("Wait() failed: %v", err)
			}
			limiter.RecordSuccess(OpCreate)
		}()
	}
	wg.Wait()
}

func TestMultipleOperations(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewRateLimiter(5, logger)

	limiter.HandleRateLimitResponse(OpCreate, http.Header{"Retry-After": []string{"30"}})

	// Other operations are not blocked by create's backoff
	start := time.Now()
	if err := limiter.Wait(context.Background(), OpGet); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Independent operation was blocked")
	}

	limiter.mu.RLock()
	if len(limiter.buckets) != 2 {
		t.Errorf("Expected 2 buckets, got %d", len(limiter.buckets))
	}
	limiter.mu.RUnlock()

	limiter.Reset()
	limiter.mu.RLock()
	if len(limiter.buckets) != 0 {
		t.Errorf("Expected no buckets after reset, got %d", len(limiter.buckets))
	}
	limiter.mu.RUnlock()
}
