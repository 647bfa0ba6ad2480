package security

import (
	"fmt"
	"guestbooklet/internal/config"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a mutable time source for store tests
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		LockoutThreshold:   5,
		LockoutDuration:    30 * time.Minute,
		LockoutRecordTTL:   time.Hour,
		CSRFTokenTTL:       time.Hour,
		ResetTokenTTL:      30 * time.Minute,
		ResetRequestLimit:  3,
		ResetRequestWindow: time.Hour,
		LoginLimit: config.RouteLimit{
			Requests:        5,
			Window:          15 * time.Minute,
			RefundOnSuccess: true,
		},
		RegisterLimit: config.RouteLimit{
			Requests:        3,
			Window:          time.Hour,
			RefundOnSuccess: true,
		},
		GenericLimit: config.RouteLimit{
			Requests: 20,
			Window:   15 * time.Minute,
		},
	}
}

func TestLockoutTracker_LocksAtThreshold(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	for i := 1; i <= 4; i++ {
		status := tracker.RecordFailure("alice@example.com")
		assert.False(t, status.Locked, "attempt %d should not lock", i)
		assert.Equal(t, i, status.Attempts)
		assert.Equal(t, 5-i, status.AttemptsRemaining)
	}

	status := tracker.RecordFailure("alice@example.com")
	assert.True(t, status.Locked)
	assert.Equal(t, 30*time.Minute, status.Remaining)
}

func TestLockoutTracker_StatusLazyUnlock(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice@example.com")
	}
	require.True(t, tracker.Status("alice@example.com").Locked)

	clock.advance(29 * time.Minute)
	status := tracker.Status("alice@example.com")
	assert.True(t, status.Locked)
	assert.Equal(t, time.Minute, status.Remaining)

	clock.advance(time.Minute)
	status = tracker.Status("alice@example.com")
	assert.False(t, status.Locked)
	assert.Equal(t, 5, status.AttemptsRemaining)
}

func TestLockoutTracker_FailureAfterExpiredLockStartsFresh(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice@example.com")
	}
	clock.advance(31 * time.Minute)

	status := tracker.RecordFailure("alice@example.com")
	assert.False(t, status.Locked)
	assert.Equal(t, 1, status.Attempts)
	assert.Equal(t, 4, status.AttemptsRemaining)
}

func TestLockoutTracker_FailureWhileLockedDoesNotExtend(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice@example.com")
	}
	clock.advance(10 * time.Minute)

	status := tracker.RecordFailure("alice@example.com")
	assert.True(t, status.Locked)
	assert.Equal(t, 20*time.Minute, status.Remaining)
}

func TestLockoutTracker_ClearResetsCounter(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	for i := 0; i < 4; i++ {
		tracker.RecordFailure("alice@example.com")
	}
	tracker.Clear("alice@example.com")

	status := tracker.Status("alice@example.com")
	assert.Equal(t, 0, status.Attempts)
	assert.Equal(t, 5, status.AttemptsRemaining)
}

func TestLockoutTracker_KeyNormalization(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	tracker.RecordFailure("Alice@Example.com")
	tracker.RecordFailure("  alice@example.com ")

	status := tracker.Status("ALICE@EXAMPLE.COM")
	assert.Equal(t, 2, status.Attempts)
}

func TestLockoutTracker_TracksUnknownEmails(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	// A tracker keyed by the submitted email locks out probes against
	// nonexistent accounts just the same
	for i := 0; i < 5; i++ {
		tracker.RecordFailure("nobody@example.com")
	}
	assert.True(t, tracker.Status("nobody@example.com").Locked)
}

func TestLockoutTracker_Sweep(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	// Locked record, expired lock
	for i := 0; i < 5; i++ {
		tracker.RecordFailure("expired-lock@example.com")
	}
	// Unlocked record, will go idle
	tracker.RecordFailure("idle@example.com")

	clock.advance(61 * time.Minute)
	// Fresh record, should survive
	tracker.RecordFailure("fresh@example.com")

	tracker.Sweep()

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	assert.Len(t, tracker.records, 1)
	assert.Contains(t, tracker.records, "fresh@example.com")
}

func TestLockoutTracker_ConcurrentFailures(t *testing.T) {
	clock := newTestClock()
	cfg := testSecurityConfig()
	cfg.LockoutThreshold = 1000
	tracker := NewLockoutTracker(cfg, clock.now)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tracker.RecordFailure("alice@example.com")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, tracker.Status("alice@example.com").Attempts)
}

func TestLockoutTracker_IndependentPerEmail(t *testing.T) {
	clock := newTestClock()
	tracker := NewLockoutTracker(testSecurityConfig(), clock.now)

	for i := 0; i < 5; i++ {
		tracker.RecordFailure(fmt.Sprintf("user%d@example.com", i%2))
	}

	assert.False(t, tracker.Status("user0@example.com").Locked)
	assert.False(t, tracker.Status("user1@example.com").Locked)
}
