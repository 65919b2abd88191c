package fetch

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// RetryConfig defines retry behavior for transient fetch failures.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    2 * time.Second,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle a fetch error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFallback
	ActionFatal
)

// ClassifyError determines the action for a given fetch error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}

	if errors.Is(err, domain.ErrFetchTerminal) {
		return ActionFallback
	}
	if errors.Is(err, domain.ErrFetchTransient) || errors.Is(err, domain.ErrRateLimited) {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	sLower := strings.ToLower(err.Error())

	// Resource genuinely absent: retrying cannot help, move to the next
	// transport.
	if strings.Contains(sLower, "404") || strings.Contains(sLower, "not found") ||
		strings.Contains(sLower, "410") || strings.Contains(sLower, "gone") {
		return ActionFallback
	}

	// Challenges and blocks: the plain transport will keep failing, the
	// evasion-capable one may not.
	if strings.Contains(sLower, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "challenge") || strings.Contains(sLower, "captcha") {
		return ActionFallback
	}

	// Default to Retry (network, timeout, 5xx, 429)
	return ActionRetry
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
