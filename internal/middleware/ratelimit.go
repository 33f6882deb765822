package middleware

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const idleAfter = 3 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per remote host. Ports are ignored so a
// client cannot reset its bucket by reconnecting.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// Run forgets hosts idle for a few minutes, once a minute, until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			rl.sweep(now)
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for host, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idleAfter {
			delete(rl.buckets, host)
		}
	}
}

func (rl *RateLimiter) allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[host]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[host] = b
	}
	b.lastSeen = time.Now()
	return b.lim.Allow()
}

func remoteHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// RateLimit applies rl to the listed methods only.
func RateLimit(rl *RateLimiter, methods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		limited[m] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if _, ok := limited[info.FullMethod]; ok && !rl.allow(remoteHost(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return next(ctx, req)
	}
}
