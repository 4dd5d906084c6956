package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FloodGuard is a coarse token bucket per client IP that runs before
// authentication. Per-operation quotas are enforced by the gate.
type FloodGuard struct {
	perSecond rate.Limit
	burst     int
	idleTTL   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	buckets map[string]*ipBucket
}

type ipBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewFloodGuard creates a FloodGuard allowing perSecond requests with the
// given burst per IP
func NewFloodGuard(perSecond float64, burst int, logger *zap.Logger) *FloodGuard {
	if burst < 1 {
		burst = 1
	}
	return &FloodGuard{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		idleTTL:   5 * time.Minute,
		logger:    logger,
		buckets:   make(map[string]*ipBucket),
	}
}

// Handler rejects requests over the per-IP budget with 429
func (g *FloodGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := utils.ClientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !g.allow(ip, time.Now()) {
			g.logger.Warn("flood guard tripped",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("ip_address", ip))
			_ = utils.WriteTooManyRequests(w, "Too many requests from this address", 1, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *FloodGuard) allow(ip string, now time.Time) bool {
	g.mu.Lock()
	b, ok := g.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(g.perSecond, g.burst)}
		g.buckets[ip] = b
	}
	b.lastSeen = now
	g.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// Prune forgets buckets idle since before cutoff and returns how many
func (g *FloodGuard) Prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for ip, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, ip)
			n++
		}
	}
	return n
}

// Len returns the number of tracked addresses
func (g *FloodGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

// StartPruner drops idle buckets every minute until ctx is done
func (g *FloodGuard) StartPruner(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := g.Prune(now.Add(-g.idleTTL)); n > 0 {
					g.logger.Debug("pruned idle flood guard buckets", zap.Int("count", n))
				}
			}
		}
	}()
}
