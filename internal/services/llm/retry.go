package llm

import (
	"strings"
	"time"
)

// RetryConfig controls API retry behavior with exponential backoff.
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// NewDefaultRetryConfig returns the retry policy used for cloud API calls.
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// CalculateBackoff returns the wait duration for the given attempt.
// Doubles per attempt, capped at MaxBackoff.
func (c RetryConfig) CalculateBackoff(attempt int) time.Duration {
	backoff := c.BaseBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return backoff
}

// IsRateLimitError reports whether an API error indicates rate limiting.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
