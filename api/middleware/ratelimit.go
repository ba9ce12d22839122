package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/config"
)

// ipEntry tracks write requests for a single IP.
type ipEntry struct {
	requests    int
	windowEnd   time.Time
	bannedUntil time.Time
}

// writeLimiter is an in-memory rate limiter for content writes: votes,
// submissions, favorites and comments.
type writeLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	max     int
	window  time.Duration
	ban     time.Duration
	stop    chan struct{}
}

func newWriteLimiter(cfg config.Config) *writeLimiter {
	l := &writeLimiter{
		entries: make(map[string]*ipEntry),
		max:     cfg.WriteMaxRequests,
		window:  cfg.WriteWindow,
		ban:     cfg.WriteBanDuration,
		stop:    make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stop:
				return
			}
		}
	}()
	return l
}

// cleanup removes entries whose ban and window have both expired.
func (l *writeLimiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.entries {
		if now.After(e.bannedUntil) && now.After(e.windowEnd) {
			delete(l.entries, ip)
		}
	}
}

// allow counts a request from ip and reports whether it may proceed. An IP
// that sends more than max requests within one window is banned.
func (l *writeLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	e, ok := l.entries[ip]
	if ok && now.Before(e.bannedUntil) {
		return false
	}
	if !ok || now.After(e.windowEnd) {
		l.entries[ip] = &ipEntry{requests: 1, windowEnd: now.Add(l.window)}
		return true
	}
	e.requests++
	if e.requests > l.max {
		e.bannedUntil = now.Add(l.ban)
		return false
	}
	return true
}

// WriteRateLimiter returns a middleware that throttles write requests per
// client IP, and a stop function that ends its cleanup goroutine.
// WriteMaxRequests <= 0 disables throttling.
func WriteRateLimiter(cfg config.Config) (gin.HandlerFunc, func()) {
	limiter := newWriteLimiter(cfg)

	mw := func(c *gin.Context) {
		if cfg.WriteMaxRequests <= 0 {
			c.Next()
			return
		}
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}

	var once sync.Once
	stop := func() { once.Do(func() { close(limiter.stop) }) }
	return mw, stop
}
