package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied when the rate-limit config is unset. Open demo
// deployments key limiters by client IP, so the pool prunes callers that
// have gone idle to keep the map bounded under IP churn.
const (
	defaultRPS     = 5
	defaultBurst   = 10
	limiterIdleTTL = 10 * time.Minute
	pruneThreshold = 1024
)

type callerLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu  sync.Mutex
	m   map[string]*callerLimiter
	cfg SecConfig
}

// Allow reports whether the caller identified by key may proceed. Keys are
// API keys when present, client IPs otherwise.
func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*callerLimiter)
	}
	now := time.Now()
	cl, ok := p.m[key]
	if !ok {
		if len(p.m) >= pruneThreshold {
			p.prune(now)
		}
		rps := p.cfg.RPS
		if rps <= 0 {
			rps = defaultRPS
		}
		burst := p.cfg.Burst
		if burst <= 0 {
			burst = defaultBurst
		}
		cl = &callerLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
		p.m[key] = cl
	}
	cl.lastSeen = now
	return cl.lim.Allow()
}

// prune holds p.mu.
func (p *limiterPool) prune(now time.Time) {
	for k, cl := range p.m {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(p.m, k)
		}
	}
}
