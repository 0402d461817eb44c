package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterSweepInterval = 5 * time.Minute
	rateLimiterIdleTimeout   = 10 * time.Minute
)

// LimitReason describes why a viewer connection was refused.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// LimitsConfig bounds concurrent viewer connections.
type LimitsConfig struct {
	MaxConnections      int64
	MaxConnectionsPerIP int
	ConnectionsPerSec   float64
	Burst               int
}

// ConnectionLimits combines an instance-wide cap, a per-IP cap and a per-IP
// connect rate.
type ConnectionLimits struct {
	clock clockwork.Clock

	current atomic.Int64
	max     int64

	mu       sync.Mutex
	perIP    map[string]int
	maxPerIP int

	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	nextSweep time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(config LimitsConfig, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		clock:     clock,
		max:       config.MaxConnections,
		perIP:     make(map[string]int),
		maxPerIP:  config.MaxConnectionsPerIP,
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(config.ConnectionsPerSec),
		burst:     config.Burst,
		nextSweep: clock.Now().Add(rateLimiterSweepInterval),
	}
}

// Acquire reserves a slot for ip. On success the caller must Release it.
func (l *ConnectionLimits) Acquire(ip string) (LimitReason, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// rate first: a refused attempt still spends a token
	if !l.allowLocked(ip) {
		return LimitReasonRate, false
	}
	if !l.acquireGlobal() {
		return LimitReasonGlobal, false
	}
	if l.perIP[ip] >= l.maxPerIP {
		l.current.Add(-1)
		return LimitReasonPerIP, false
	}
	l.perIP[ip]++
	return "", true
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.perIP[ip]; count > 0 {
		if count == 1 {
			delete(l.perIP, ip)
		} else {
			l.perIP[ip] = count - 1
		}
		l.current.Add(-1)
	}
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// Count returns the number of slots held by ip.
func (l *ConnectionLimits) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// allowLocked must be called with mu held.
func (l *ConnectionLimits) allowLocked(ip string) bool {
	now := l.clock.Now()
	if now.After(l.nextSweep) {
		cutoff := now.Add(-rateLimiterIdleTimeout)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.nextSweep = now.Add(rateLimiterSweepInterval)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *ConnectionLimits) activeLimiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
