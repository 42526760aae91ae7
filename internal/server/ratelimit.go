package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client limits. A zero limit is disabled.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter tracks request counts per client in fixed minute, hour and day
// windows.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	now       func() time.Time
	clients   map[string]*clientUsage
	lastPrune time.Time
}

type clientUsage struct {
	minuteStart time.Time
	hourStart   time.Time
	day         time.Time

	minute    int
	hour      int
	today     int
	dataToday int64
	lastSeen  time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	DataToday          int64
}

// NewRateLimiter creates a limiter with cfg's limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*clientUsage),
	}
}

// Allow records a request of dataSize bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)
	u := rl.usage(client, now)
	u.roll(now)

	if l := rl.cfg.RequestsPerMinute; l > 0 && u.minute >= l {
		return &RateLimitError{Window: "minute", Limit: l, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if l := rl.cfg.RequestsPerHour; l > 0 && u.hour >= l {
		return &RateLimitError{Window: "hour", Limit: l, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.day.AddDate(0, 0, 1)
	if l := rl.cfg.MaxRequestsPerDay; l > 0 && u.today >= l {
		return &QuotaExceededError{Kind: "requests", Limit: int64(l), Used: int64(u.today), Resets: resets}
	}
	if l := rl.cfg.MaxDataPerDay; l > 0 && u.dataToday+dataSize > l {
		return &QuotaExceededError{Kind: "data", Limit: l, Used: u.dataToday, Resets: resets}
	}

	u.minute++
	u.hour++
	u.today++
	u.dataToday += dataSize
	u.lastSeen = now
	return nil
}

// Usage returns a copy of client's counters.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[client]
	if !ok {
		return Usage{}
	}
	u.roll(rl.now())
	return Usage{
		RequestsLastMinute: u.minute,
		RequestsLastHour:   u.hour,
		RequestsToday:      u.today,
		DataToday:          u.dataToday,
	}
}

func (rl *RateLimiter) usage(client string, now time.Time) *clientUsage {
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, day: startOfDay(now), lastSeen: now}
		rl.clients[client] = u
	}
	return u
}

// prune drops clients idle for a day, at most once an hour.
func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastPrune) < time.Hour {
		return
	}
	rl.lastPrune = now
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) >= 24*time.Hour {
			delete(rl.clients, id)
		}
	}
}

// roll starts new windows once the current ones have elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minute = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hour = now, 0
	}
	if day := startOfDay(now); day.After(u.day) {
		u.day, u.today, u.dataToday = day, 0, 0
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError reports an exceeded minute or hour limit.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Kind   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Kind, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
