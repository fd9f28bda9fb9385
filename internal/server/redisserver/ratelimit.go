package redisserver

import (
	"net"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/time/rate"
)

const (
	limiterShards = 16

	// Idle limiters are dropped once a shard has seen pruneEvery calls.
	limiterIdleTTL = 5 * time.Minute
	pruneEvery     = 1024
)

// rateLimiter limits commands per second per client IP.
// Each IP gets a token bucket with burst equal to the rate.
type rateLimiter struct {
	limit  rate.Limit
	burst  int
	now    func() time.Time
	shards [limiterShards]limiterShard
}

type limiterShard struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	calls    int
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(perSecond int) *rateLimiter {
	rl := &rateLimiter{
		limit: rate.Limit(perSecond),
		burst: perSecond,
		now:   time.Now,
	}
	for i := range rl.shards {
		rl.shards[i].limiters = make(map[string]*clientLimiter)
	}
	return rl
}

// allow reports whether a command from ip may run now.
func (rl *rateLimiter) allow(ip string) bool {
	now := rl.now()
	sh := &rl.shards[murmur3.Sum32([]byte(ip))%limiterShards]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.calls++
	if sh.calls >= pruneEvery {
		sh.calls = 0
		for k, cl := range sh.limiters {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(sh.limiters, k)
			}
		}
	}

	cl, ok := sh.limiters[ip]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rl.limit, rl.burst)}
		sh.limiters[ip] = cl
	}
	cl.lastSeen = now
	return cl.lim.AllowN(now, 1)
}

// size returns the number of tracked clients.
func (rl *rateLimiter) size() int {
	n := 0
	for i := range rl.shards {
		sh := &rl.shards[i]
		sh.mu.Lock()
		n += len(sh.limiters)
		sh.mu.Unlock()
	}
	return n
}

// clientIP strips the port from a remote address.
func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
