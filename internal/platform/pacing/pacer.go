package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces successive upstream calls by a fixed interval. The first call
// passes immediately; callers Wait before each request so there is never a
// trailing delay after the last one.
type Pacer struct {
	limiter *rate.Limiter
}

func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
