package security

import (
	"guestbooklet/internal/config"
	"strings"
	"sync"
	"time"
)

// RouteClass identifies which request budget applies to a route
type RouteClass string

// Route classes with distinct budgets
const (
	RouteLogin    RouteClass = "login"
	RouteRegister RouteClass = "register"
	RouteGeneric  RouteClass = "auth"
)

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed bool
	// RetryAfterSeconds is how long the client must back off when denied
	RetryAfterSeconds int
}

type rateWindow struct {
	count       int
	windowStart time.Time
}

// RouteRateLimiter applies fixed-window budgets per (route class, client IP).
// Login and registration budgets count only failed outcomes: the caller
// refunds the unit after a successful response. Windows are not persisted; a
// process restart resets every budget.
type RouteRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	limits  map[RouteClass]config.RouteLimit
	now     func() time.Time
}

// NewRouteRateLimiter creates a route-class rate limiter. A nil now function
// defaults to time.Now.
func NewRouteRateLimiter(cfg config.SecurityConfig, now func() time.Time) *RouteRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RouteRateLimiter{
		windows: make(map[string]*rateWindow),
		limits: map[RouteClass]config.RouteLimit{
			RouteLogin:    cfg.LoginLimit,
			RouteRegister: cfg.RegisterLimit,
			RouteGeneric:  cfg.GenericLimit,
		},
		now: now,
	}
}

func windowKey(class RouteClass, clientIP string) string {
	return string(class) + "|" + clientIP
}

// Check consumes one unit of the budget for (class, ip). When the budget is
// exceeded the request is denied with the seconds left in the current window.
func (rl *RouteRateLimiter) Check(class RouteClass, clientIP string) Decision {
	limit, ok := rl.limits[class]
	if !ok || limit.Requests <= 0 {
		return Decision{Allowed: true}
	}

	key := windowKey(class, clientIP)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win, exists := rl.windows[key]
	if !exists || now.Sub(win.windowStart) >= limit.Window {
		win = &rateWindow{windowStart: now}
		rl.windows[key] = win
	}

	win.count++
	if win.count > limit.Requests {
		retryAfter := int(win.windowStart.Add(limit.Window).Sub(now).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{RetryAfterSeconds: retryAfter}
	}

	return Decision{Allowed: true}
}

// Refund gives one unit back after a successful outcome on a refundable class
func (rl *RouteRateLimiter) Refund(class RouteClass, clientIP string) {
	limit, ok := rl.limits[class]
	if !ok || !limit.RefundOnSuccess {
		return
	}

	key := windowKey(class, clientIP)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win, exists := rl.windows[key]
	if !exists || now.Sub(win.windowStart) >= limit.Window {
		return
	}
	if win.count > 0 {
		win.count--
	}
}

// RefundOnSuccess reports whether the class refunds successful outcomes
func (rl *RouteRateLimiter) RefundOnSuccess(class RouteClass) bool {
	limit, ok := rl.limits[class]
	return ok && limit.RefundOnSuccess
}

// Sweep removes windows that have fully elapsed
func (rl *RouteRateLimiter) Sweep() {
	now := rl.now()

	rl.mu.Lock()
	keys := make([]string, 0, len(rl.windows))
	for key := range rl.windows {
		keys = append(keys, key)
	}
	rl.mu.Unlock()

	for _, key := range keys {
		class, _, _ := strings.Cut(key, "|")
		limit, ok := rl.limits[RouteClass(class)]
		if !ok {
			continue
		}
		rl.mu.Lock()
		if win, exists := rl.windows[key]; exists && now.Sub(win.windowStart) >= limit.Window {
			delete(rl.windows, key)
		}
		rl.mu.Unlock()
	}
}
