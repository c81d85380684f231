package wopsnet

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor pairs a per-IP limiter with the last time it was touched,
// so stale entries can be reaped instead of growing the map forever.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorLimiters tracks one rate.Limiter per remote IP, shedding
// connections before they ever reach the woopsa request engine.
type visitorLimiters struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	expiresIn time.Duration
}

func newVisitorLimiters(requestsPerSecond float64, burst int, expiresIn time.Duration) *visitorLimiters {
	return &visitorLimiters{
		visitors:  make(map[string]*visitor),
		every:     rate.Limit(requestsPerSecond),
		burst:     burst,
		expiresIn: expiresIn,
	}
}

// allow reports whether ip may open a connection, creating its limiter
// on first sight.
func (vl *visitorLimiters) allow(ip string) bool {
	vl.mu.Lock()
	v, exists := vl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(vl.every, vl.burst)}
		vl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	vl.mu.Unlock()
	return v.limiter.Allow()
}

// cleanup removes visitors idle longer than expiresIn. Intended to run
// on its own goroutine for the lifetime of the Host.
func (vl *visitorLimiters) cleanup() {
	vl.mu.Lock()
	for ip, v := range vl.visitors {
		if time.Since(v.lastSeen) > vl.expiresIn {
			delete(vl.visitors, ip)
		}
	}
	vl.mu.Unlock()
}

func (vl *visitorLimiters) runCleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vl.cleanup()
		case <-stop:
			return
		}
	}
}
