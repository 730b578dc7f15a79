package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleClientTTL is how long an unused client bucket is kept.
const idleClientTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter enforces a per-client requests-per-minute budget with one
// token bucket per client address. The burst equals the per-minute budget.
type ClientLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*clientBucket
	lastSweep time.Time
	now       func() time.Time
}

// NewClientLimiter creates a limiter. perMinute <= 0 disables limiting.
func NewClientLimiter(perMinute int) *ClientLimiter {
	return &ClientLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientBucket),
		now:       time.Now,
	}
}

// Allow takes one token for the client. When the budget is spent it returns
// false and how long until the next token.
func (l *ClientLimiter) Allow(client string) (bool, time.Duration) {
	if l.perMinute <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.clients[client] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweepLocked drops buckets idle longer than idleClientTTL, at most once per TTL.
func (l *ClientLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < idleClientTTL {
		return
	}
	l.lastSweep = now
	for client, b := range l.clients {
		if now.Sub(b.lastSeen) > idleClientTTL {
			delete(l.clients, client)
		}
	}
}

// Clients returns the number of tracked clients.
func (l *ClientLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
