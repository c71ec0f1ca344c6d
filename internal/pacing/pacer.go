// Package pacing spaces out request dispatch to a target rate.
package pacing

import (
	"context"
	"sync"
	"time"
)

// Pacer schedules dispatches at a fixed rate using a leaky bucket: it tracks
// when the next dispatch is due rather than how many tokens are left, so a
// slow consumer never causes a burst larger than maxBurst.
//
// Pacer is safe for concurrent use.
type Pacer struct {
	mu          sync.Mutex
	rate        float64
	maxBurst    float64
	accumulated float64
	lastDrip    time.Time
	now         func() time.Time

	dispatched int64
	waited     time.Duration
}

// New returns a pacer allowing rate dispatches per second. The first
// dispatch is immediate. A rate <= 0 disables pacing.
func New(rate float64) *Pacer {
	return NewWithBurst(rate, 1)
}

// NewWithBurst is New with up to maxBurst dispatches released back to back
// after an idle period.
func NewWithBurst(rate, maxBurst float64) *Pacer {
	if maxBurst < 1 {
		maxBurst = 1
	}
	p := &Pacer{
		rate:     rate,
		maxBurst: maxBurst,
		now:      time.Now,
	}
	p.lastDrip = p.now()
	p.accumulated = 1
	return p
}

// Unlimited reports whether pacing is disabled.
func (p *Pacer) Unlimited() bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate <= 0
}

// Next reserves the next dispatch slot and returns when it is due. The
// returned time is in the past when the caller is behind schedule.
func (p *Pacer) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.dispatched++
	if p.rate <= 0 {
		return now
	}

	if elapsed := now.Sub(p.lastDrip).Seconds(); elapsed > 0 {
		p.accumulated += elapsed * p.rate
	}
	if p.accumulated > p.maxBurst {
		p.accumulated = p.maxBurst
	}

	if p.accumulated >= 1 {
		p.accumulated--
		if now.After(p.lastDrip) {
			p.lastDrip = now
		}
		return now
	}

	wait := time.Duration((1 - p.accumulated) / p.rate * float64(time.Second))
	p.accumulated = 0
	// lastDrip moves to the reserved slot so sleeping until it does not
	// credit the same interval twice.
	next := p.lastDrip
	if now.After(next) {
		next = now
	}
	next = next.Add(wait)
	p.lastDrip = next
	p.waited += next.Sub(now)
	return next
}

// Wait blocks until the next dispatch slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.Unlimited() {
		return ctx.Err()
	}

	d := time.Until(p.Next())
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rate returns the target dispatches per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// SetRate changes the target rate without releasing a burst.
func (p *Pacer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
	p.accumulated = 0
	p.lastDrip = p.now()
}

// Stats returns how many slots were reserved and the total delay imposed.
func (p *Pacer) Stats() (dispatched int64, waited time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatched, p.waited
}
