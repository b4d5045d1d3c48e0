package client

import (
	"context"
	"io"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every download of a Client.
type RateLimiter struct {
	mu     sync.Mutex
	rate   int64   // bytes per second
	tokens float64 // current available tokens
	last   time.Time
}

// NewRateLimiter returns a limiter for bytesPerSecond, or nil when the limit is not positive.
func NewRateLimiter(bytesPerSecond int64) *RateLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &RateLimiter{rate: bytesPerSecond, tokens: float64(bytesPerSecond), last: time.Now()}
}

// SetRate changes the limit of a running limiter.
func (l *RateLimiter) SetRate(bytesPerSecond int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rate = bytesPerSecond
	if l.tokens > float64(bytesPerSecond) {
		l.tokens = float64(bytesPerSecond)
	}
	l.last = time.Now()
}

// Rate returns the configured bytes per second.
func (l *RateLimiter) Rate() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// take reserves up to want bytes and returns how many were granted. It returns 0 and
// the wait duration when the bucket is empty.
func (l *RateLimiter) take(want int) (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rate <= 0 {
		return want, 0
	}
	now := time.Now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens += elapsed * float64(l.rate)
		if maxTokens := float64(l.rate); l.tokens > maxTokens {
			l.tokens = maxTokens
		}
		l.last = now
	}
	allowed := int(l.tokens)
	if allowed <= 0 {
		return 0, time.Duration(float64(time.Second) / float64(l.rate))
	}
	if want > allowed {
		want = allowed
	}
	l.tokens -= float64(want)
	return want, 0
}

type limitedReader struct {
	ctx   context.Context
	under io.Reader
	lim   *RateLimiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	for {
		n, wait := lr.lim.take(len(p))
		if n > 0 {
			read, err := lr.under.Read(p[:n])
			if read < n {
				lr.lim.refund(n - read)
			}
			return read, err
		}
		select {
		case <-lr.ctx.Done():
			return 0, lr.ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (l *RateLimiter) refund(n int) {
	l.mu.Lock()
	l.tokens += float64(n)
	l.mu.Unlock()
}

// wrap limits r with l; a nil limiter leaves r untouched.
func (l *RateLimiter) wrap(ctx context.Context, r io.Reader) io.Reader {
	if l == nil {
		return r
	}
	return &limitedReader{ctx: ctx, under: r, lim: l}
}
