// Package ratelimit throttles Google Drive API calls per operation and backs off
// after the API reports a rate limit.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Drive operations with independent buckets
const (
	OpCreate = "files.create"
	OpGet    = "files.get"
	OpDelete = "files.delete"
)

// defaultBackoff is used when a rate-limited response carries no Retry-After
const defaultBackoff = 1 * time.Second

// Bucket represents a rate limit bucket for one Drive operation
type Bucket struct {
	BlockedUntil time.Time     // set after a rate-limited response
	Throttled    int           // rate-limited responses seen
	limiter      *rate.Limiter // token bucket rate limiter
	mu           sync.Mutex
}

// RateLimiter manages rate limits for Drive API operations
type RateLimiter struct {
	buckets map[string]*Bucket // operation -> bucket
	perSec  int
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRateLimiter creates a limiter allowing perSecond requests per operation
func NewRateLimiter(perSecond int, logger *zap.Logger) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		perSec:  perSecond,
		logger:  logger,
	}
}

// getBucket retrieves or creates a bucket for an operation
func (rl *RateLimiter) getBucket(op string) *Bucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[op]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[op]; exists {
		return bucket
	}

	bucket = &Bucket{
		limiter: rate.NewLimiter(rate.Limit(rl.perSec), rl.perSec),
	}
	rl.buckets[op] = bucket
	return bucket
}

// Wait blocks until a request for op may be sent, or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, op string) error {
	bucket := rl.getBucket(op)

	bucket.mu.Lock()
	blockedUntil := bucket.BlockedUntil
	limiter := bucket.limiter
	bucket.mu.Unlock()

	if wait := time.Until(blockedUntil); wait > 0 {
		rl.logger.Warn("Drive rate limit backoff, waiting",
			zap.String("operation", op),
			zap.Duration("wait_duration", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// IsRateLimited reports whether a Drive response signals a rate limit.
// Drive answers 429, or 403 with a rateLimitExceeded/userRateLimitExceeded reason.
func IsRateLimited(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status != http.StatusForbidden {
		return false
	}
	s := string(body)
	return strings.Contains(s, "rateLimitExceeded") || strings.Contains(s, "userRateLimitExceeded")
}

// HandleRateLimitResponse blocks op until the Retry-After delay has passed
func (rl *RateLimiter) HandleRateLimitResponse(op string, headers http.Header) time.Duration {
	bucket := rl.getBucket(op)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	var retryAfter time.Duration
	if retry := headers.Get("Retry-After"); retry != "" {
		if seconds, err := strconv.Atoi(retry); err == nil {
			retryAfter = time.Duration(seconds) * time.Second
		} else if t, err := http.ParseTime(retry); err == nil {
			retryAfter = time.Until(t)
		}
	}

	// Back off exponentially when the API gives no hint
	if retryAfter <= 0 {
		retryAfter = defaultBackoff << min(bucket.Throttled, 5)
	}

	bucket.Throttled++
	bucket.BlockedUntil = time.Now().Add(retryAfter)

	rl.logger.Warn("Rate limited by Drive API",
		zap.String("operation", op),
		zap.Duration("retry_after", retryAfter),
		zap.Int("throttled", bucket.Throttled),
	)

	return retryAfter
}

// RecordSuccess clears the backoff counter of op
func (rl *RateLimiter) RecordSuccess(op string) {
	bucket := rl.getBucket(op)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	bucket.Throttled = 0
}

// GetStatus returns the current backoff state of an operation
func (rl *RateLimiter) GetStatus(op string) (throttled int, blockedUntil time.Time) {
	bucket := rl.getBucket(op)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Throttled, bucket.BlockedUntil
}

// Reset clears all rate limit buckets (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.buckets = make(map[string]*Bucket)
	rl.logger.Info("Rate limiter reset")
}
