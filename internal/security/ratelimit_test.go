package security

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRouteRateLimiter_LoginBudget(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	for i := 0; i < 5; i++ {
		decision := limiter.Check(RouteLogin, "192.0.2.1")
		assert.True(t, decision.Allowed, "request %d should pass", i+1)
	}

	decision := limiter.Check(RouteLogin, "192.0.2.1")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 900, decision.RetryAfterSeconds)
}

func TestRouteRateLimiter_WindowReset(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	for i := 0; i < 6; i++ {
		limiter.Check(RouteLogin, "192.0.2.1")
	}
	assert.False(t, limiter.Check(RouteLogin, "192.0.2.1").Allowed)

	clock.advance(15 * time.Minute)
	assert.True(t, limiter.Check(RouteLogin, "192.0.2.1").Allowed)
}

func TestRouteRateLimiter_RetryAfterShrinks(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	for i := 0; i < 5; i++ {
		limiter.Check(RouteLogin, "192.0.2.1")
	}
	clock.advance(10 * time.Minute)

	decision := limiter.Check(RouteLogin, "192.0.2.1")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 300, decision.RetryAfterSeconds)
}

func TestRouteRateLimiter_ClassesAndIPsIndependent(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	for i := 0; i < 6; i++ {
		limiter.Check(RouteLogin, "192.0.2.1")
	}

	assert.True(t, limiter.Check(RouteLogin, "192.0.2.2").Allowed)
	assert.True(t, limiter.Check(RouteRegister, "192.0.2.1").Allowed)
	assert.True(t, limiter.Check(RouteGeneric, "192.0.2.1").Allowed)
}

func TestRouteRateLimiter_Refund(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	// Five checks followed by five refunds leaves the budget untouched
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Check(RouteLogin, "192.0.2.1").Allowed)
		limiter.Refund(RouteLogin, "192.0.2.1")
	}
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Check(RouteLogin, "192.0.2.1").Allowed)
	}
	assert.False(t, limiter.Check(RouteLogin, "192.0.2.1").Allowed)
}

func TestRouteRateLimiter_GenericDoesNotRefund(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	assert.True(t, limiter.RefundOnSuccess(RouteLogin))
	assert.True(t, limiter.RefundOnSuccess(RouteRegister))
	assert.False(t, limiter.RefundOnSuccess(RouteGeneric))

	for i := 0; i < 21; i++ {
		limiter.Check(RouteGeneric, "192.0.2.1")
		limiter.Refund(RouteGeneric, "192.0.2.1")
	}
	assert.False(t, limiter.Check(RouteGeneric, "192.0.2.1").Allowed)
}

func TestRouteRateLimiter_RegisterBudget(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Check(RouteRegister, "192.0.2.1").Allowed)
	}
	decision := limiter.Check(RouteRegister, "192.0.2.1")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 3600, decision.RetryAfterSeconds)
}

func TestRouteRateLimiter_Sweep(t *testing.T) {
	clock := newTestClock()
	limiter := NewRouteRateLimiter(testSecurityConfig(), clock.now)

	limiter.Check(RouteLogin, "192.0.2.1")
	clock.advance(16 * time.Minute)
	limiter.Check(RouteRegister, "192.0.2.1") // register window is an hour

	limiter.Sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.windows, 1)
	assert.Contains(t, limiter.windows, windowKey(RouteRegister, "192.0.2.1"))
}

func TestRouteRateLimiter_ConcurrentChecks(t *testing.T) {
	clock := newTestClock()
	cfg := testSecurityConfig()
	cfg.GenericLimit.Requests = 1000
	limiter := NewRouteRateLimiter(cfg, clock.now)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				limiter.Check(RouteGeneric, "192.0.2.1")
			}
		}()
	}
	wg.Wait()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 200, limiter.windows[windowKey(RouteGeneric, "192.0.2.1")].count)
}
