package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	lastGC   time.Time
	now      func() time.Time
}

func newIPLimiter(r rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

func (ipl *ipLimiter) get(ip string) *rate.Limiter {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	now := ipl.now()
	if now.Sub(ipl.lastGC) > limiterIdleTTL {
		for k, v := range ipl.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(ipl.visitors, k)
			}
		}
		ipl.lastGC = now
	}

	v, ok := ipl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(ipl.rate, ipl.burst)}
		ipl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// PerMinute converts a requests-per-minute budget into a limit and burst.
func PerMinute(n int) (rate.Limit, int) {
	if n <= 0 {
		return rate.Inf, 0
	}
	return rate.Every(time.Minute / time.Duration(n)), n
}

// RateLimit throttles requests per connecting address (PeerIP). Forwarding
// headers are not trusted here. Over-limit requests get 429.
func RateLimit(r rate.Limit, burst int) func(http.Handler) http.Handler {
	il := newIPLimiter(r, burst)
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !il.get(PeerIP(r)).Allow() {
				retry := 60
				if il.rate > 0 && il.rate != rate.Inf {
					retry = int(time.Duration(float64(time.Second)/float64(il.rate)).Seconds()) + 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests, try again later"})
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}
