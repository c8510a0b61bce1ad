package ratelimiter

import (
	"hash/maphash"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// lockShards bounds the lock set; per-key state lives only in the Cache.
const lockShards = 256

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	Close() error
}

type bucketState struct {
	tokens   float64
	lastFill time.Time
}

// RateLimiter is a token bucket per source key. Buckets refill continuously at
// maxRatePerSecond up to maxBurst and expire from the cache after cacheTTL idle.
type RateLimiter struct {
	maxRatePerSecond float64
	maxBurst         int
	cache            Cache
	cacheTTL         time.Duration
	sourceHeaderKey  string
	now              func() time.Time

	seed  maphash.Seed
	locks [lockShards]sync.Mutex
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            Cache
	CacheTTL         time.Duration
	SourceHeaderKey  string
	Now              func() time.Time
}

func New(options Options) *RateLimiter {
	if options.CacheTTL <= 0 {
		options.CacheTTL = 10 * time.Second
	}
	if options.Cache == nil {
		options.Cache = NewInMemory(options.CacheTTL)
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	return &RateLimiter{
		maxRatePerSecond: float64(options.MaxRatePerSecond),
		maxBurst:         options.MaxBurst,
		cache:            options.Cache,
		cacheTTL:         options.CacheTTL,
		sourceHeaderKey:  options.SourceHeaderKey,
		now:              options.Now,
		seed:             maphash.MakeSeed(),
	}
}

func (rl *RateLimiter) getLock(sourceKey string) *sync.Mutex {
	return &rl.locks[maphash.String(rl.seed, sourceKey)%lockShards]
}

// current returns the refilled bucket for sourceKey. A miss or cache error
// fails open with a full bucket.
func (rl *RateLimiter) current(sourceKey string, now time.Time) bucketState {
	state, err := rl.cache.Get(sourceKey)
	if err != nil {
		return bucketState{tokens: float64(rl.maxBurst), lastFill: now}
	}

	elapsed := now.Sub(state.lastFill).Seconds()
	if elapsed > 0 {
		state.tokens += elapsed * rl.maxRatePerSecond
		if state.tokens > float64(rl.maxBurst) {
			state.tokens = float64(rl.maxBurst)
		}
		state.lastFill = now
	}
	return state
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	state := rl.current(sourceKey, rl.now())
	allowed := state.tokens >= 1
	if allowed {
		state.tokens--
	}
	_ = rl.cache.Set(sourceKey, state, rl.cacheTTL)
	return allowed
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	return int(rl.current(sourceKey, rl.now()).tokens)
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

// GetSourceKey uses the remote host unless a header is configured, in which
// case the header's first hop wins when present.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.sourceHeaderKey != "" {
		if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
			first, _, _ := strings.Cut(key, ",")
			return strings.TrimSpace(first)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) Close() error {
	return rl.cache.Close()
}
