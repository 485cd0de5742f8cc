package ratelimiter

import "errors"

var (
	ErrNoBudgets     = errors.New("at least one bucket budget is required")
	ErrInvalidBudget = errors.New("budget limit and window must be positive")
	ErrUnknownBucket = errors.New("unknown rate limit bucket")
)
