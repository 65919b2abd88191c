package ledger

import (
	"context"
	"sync"
	"time"
)

// Gate is a blocking token bucket limiting calls to a fixed rate per second.
// Wait blocks the caller until a slot frees up instead of failing, so a
// burst of workers simply queues at the gate.
type Gate struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	now func() time.Time
}

// NewGate creates a gate allowing ratePerSecond calls per second.
func NewGate(ratePerSecond int) *Gate {
	if ratePerSecond < 1 {
		ratePerSecond = 1
	}
	return &Gate{
		tokens:     float64(ratePerSecond),
		maxTokens:  float64(ratePerSecond),
		refillRate: float64(ratePerSecond),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		if d := g.take(); d == 0 {
			return nil
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
	}
}

// take consumes a token if one is available, otherwise returns how long to
// wait before trying again.
func (g *Gate) take() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	elapsed := now.Sub(g.lastRefill).Seconds()
	g.tokens += elapsed * g.refillRate
	if g.tokens > g.maxTokens {
		g.tokens = g.maxTokens
	}
	g.lastRefill = now

	if g.tokens >= 1 {
		g.tokens--
		return 0
	}

	deficit := 1 - g.tokens
	return time.Duration(deficit / g.refillRate * float64(time.Second))
}
