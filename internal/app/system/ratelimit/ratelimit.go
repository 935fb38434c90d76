// Package ratelimit bounds how often a key (a client IP, an email, a user)
// may hit an endpoint. Limits are fixed windows, kept per process by
// Limiter or shared through Redis by RedisLimiter.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// KeyLimiter decides whether one more request for key fits in the budget.
// Both the in-process Limiter and RedisLimiter satisfy it.
type KeyLimiter interface {
	AllowKey(ctx context.Context, key string) bool
	Reset(ctx context.Context, key string) error
}

type stopper interface{ Stop() }

// Stop ends background work of l if it has any. Redis-backed limiters have
// none.
func Stop(l KeyLimiter) {
	if s, ok := l.(stopper); ok {
		s.Stop()
	}
}

// Limiter is an in-process fixed-window counter per key. It is safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
	limit   int
	period  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

type window struct {
	count int
	ends  time.Time
}

// New returns a Limiter allowing limit requests per period for each key.
// Expired windows are evicted every other period until Stop is called.
func New(limit int, period time.Duration) *Limiter {
	l := &Limiter{
		windows: make(map[string]window),
		limit:   limit,
		period:  period,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go l.evictLoop(2 * period)
	return l
}

// AllowKey counts one request for key and reports whether it is within the
// limit.
func (l *Limiter) AllowKey(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.ends) {
		l.windows[key] = window{count: 1, ends: now.Add(l.period)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	l.windows[key] = w
	return true
}

// Reset forgets the window for key.
func (l *Limiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
	return nil
}

// Stop ends the eviction goroutine. The limiter keeps counting afterwards.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) evictLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for k, w := range l.windows {
				if !now.Before(w.ends) {
					delete(l.windows, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ClientIP returns the host part of r.RemoteAddr. The router runs chi's
// RealIP middleware first, so proxy headers are already applied.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoginLimiter throttles sign-in attempts both per client IP and per
// account email.
type LoginLimiter struct {
	byIP    KeyLimiter
	byEmail KeyLimiter
}

// NewLoginLimiter combines an IP limiter and an email limiter.
func NewLoginLimiter(byIP, byEmail KeyLimiter) *LoginLimiter {
	return &LoginLimiter{byIP: byIP, byEmail: byEmail}
}

// NewMemoryLoginLimiter builds a LoginLimiter on in-process counters.
func NewMemoryLoginLimiter(ipLimit int, ipPeriod time.Duration, emailLimit int, emailPeriod time.Duration) *LoginLimiter {
	return NewLoginLimiter(New(ipLimit, ipPeriod), New(emailLimit, emailPeriod))
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check counts one attempt. When it is over a limit it returns false and a
// message for the client.
func (ll *LoginLimiter) Check(r *http.Request, email string) (bool, string) {
	ctx := r.Context()
	if !ll.byIP.AllowKey(ctx, ClientIP(r)) {
		return false, "Too many sign-in attempts. Please wait a minute before trying again."
	}
	if k := emailKey(email); k != "" && !ll.byEmail.AllowKey(ctx, k) {
		return false, "Too many sign-in attempts for this account. Please wait a few minutes."
	}
	return true, ""
}

// ResetEmail clears the per-account counter after a successful sign-in.
func (ll *LoginLimiter) ResetEmail(ctx context.Context, email string) error {
	if k := emailKey(email); k != "" {
		return ll.byEmail.Reset(ctx, k)
	}
	return nil
}

// Stop ends background work of both limiters.
func (ll *LoginLimiter) Stop() {
	Stop(ll.byIP)
	Stop(ll.byEmail)
}
