package domain

import (
	"context"
	"time"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	RetryIn   time.Duration
}

// RateLimiter bounds repeated attempts within a fixed window. A limit of
// zero or less disables limiting and always allows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
