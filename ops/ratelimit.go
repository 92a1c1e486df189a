package ops

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter budget: 5 requests every 12 seconds per client IP. The ops server
// listens on loopback only, so this is protection against runaway scripts
// rather than abuse.
const (
	limiterWindow = 12 * time.Second
	limiterBurst  = 5

	// Entries idle longer than this are pruned on the next lookup.
	limiterIdleTTL = time.Hour
)

type ipEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter applies a per-client-IP request budget to the ops endpoints.
type Limiter struct {
	mu    sync.Mutex
	perIP map[string]*ipEntry
}

// NewLimiter creates an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{perIP: make(map[string]*ipEntry)}
}

// Middleware rejects requests exceeding the per-IP budget with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.allow(ip) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.perIP[ip]
	if !ok {
		l.prune(now)
		entry = &ipEntry{lim: rate.NewLimiter(rate.Every(limiterWindow), limiterBurst)}
		l.perIP[ip] = entry
	}
	entry.seen = now
	return entry.lim.Allow()
}

// prune drops idle entries. Called with the lock held, only when a new IP is
// about to be inserted, so steady-state traffic pays nothing.
func (l *Limiter) prune(now time.Time) {
	for ip, entry := range l.perIP {
		if now.Sub(entry.seen) > limiterIdleTTL {
			delete(l.perIP, ip)
		}
	}
}
