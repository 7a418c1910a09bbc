package gemini

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

// Clock abstracts time for the Pacer so tests can drive it deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer serializes calls to the generative capability. It enforces a minimum
// spacing between consecutive calls through a shared last-call timestamp, and
// retries quota responses with the server-suggested delay. One Pacer instance
// must be shared by every caller in the process; per-caller pacers would
// defeat the external quota.
type Pacer struct {
	log            *logger.Logger
	clock          Clock
	minInterval    time.Duration
	maxAttempts    int
	defaultBackoff time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewPacer(log *logger.Logger, clock Clock) *Pacer {
	if clock == nil {
		clock = realClock{}
	}
	return &Pacer{
		log:            log.With("service", "GeminiPacer"),
		clock:          clock,
		minInterval:    time.Second,
		maxAttempts:    3,
		defaultBackoff: 30 * time.Second,
	}
}

// Do runs fn under the pacing and quota-retry policy. Safety blocks and
// non-quota errors pass through on the first occurrence.
func (p *Pacer) Do(ctx context.Context, fn func(ctx context.Context) (Result, error)) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.waitTurn(ctx); err != nil {
			return Result{}, err
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var qe *QuotaError
		if !errors.As(err, &qe) {
			return Result{}, err
		}
		if attempt == p.maxAttempts {
			break
		}

		delay := qe.RetryAfter
		if delay <= 0 {
			delay = p.defaultBackoff
		}
		p.log.Warn("Generative call rate limited, backing off",
			"attempt", attempt,
			"max_attempts", p.maxAttempts,
			"delay", delay.String(),
			"quota", qe.Quota,
		)
		if err := p.clock.Sleep(ctx, delay); err != nil {
			return Result{}, err
		}
	}
	return Result{}, lastErr
}

// waitTurn reserves the next send slot. Concurrent callers queue behind the
// shared timestamp, so spacing holds across goroutines.
func (p *Pacer) waitTurn(ctx context.Context) error {
	p.mu.Lock()
	now := p.clock.Now()
	next := p.last.Add(p.minInterval)
	var sleepFor time.Duration
	if !p.last.IsZero() && next.After(now) {
		sleepFor = next.Sub(now)
	}
	p.last = now.Add(sleepFor)
	p.mu.Unlock()

	if sleepFor > 0 {
		return p.clock.Sleep(ctx, sleepFor)
	}
	return nil
}
