// Package security implements the ephemeral credential security stores:
// failed-login lockout, CSRF tokens, password reset tokens and per-route
// rate limiting. All stores are process-local mutex-guarded maps; every
// lookup independently checks expiry so the background sweep is a cleanup
// optimization, not a correctness requirement.
package security

import (
	"guestbooklet/internal/config"
	"strings"
	"sync"
	"time"
)

// lockoutRecord tracks failed logins for one email
type lockoutRecord struct {
	attempts      int
	lastAttemptAt time.Time
	lockedUntil   *time.Time
}

// LockoutStatus describes the lockout state of an email at a point in time
type LockoutStatus struct {
	Locked bool
	// Remaining is how long the lock still holds; zero when not locked
	Remaining time.Duration
	// Attempts is the current failed attempt count
	Attempts int
	// AttemptsRemaining is how many more failures are allowed before locking
	AttemptsRemaining int
}

// LockoutTracker maintains per-email failed-login counters with a time-boxed
// lock state. The tracker is keyed by the submitted email string regardless of
// whether an account exists, so probing unknown emails behaves identically to
// probing known ones.
type LockoutTracker struct {
	mu        sync.Mutex
	records   map[string]*lockoutRecord
	threshold int
	duration  time.Duration
	recordTTL time.Duration
	now       func() time.Time
}

// NewLockoutTracker creates a lockout tracker. A nil now function defaults to
// time.Now.
func NewLockoutTracker(cfg config.SecurityConfig, now func() time.Time) *LockoutTracker {
	if now == nil {
		now = time.Now
	}
	return &LockoutTracker{
		records:   make(map[string]*lockoutRecord),
		threshold: cfg.LockoutThreshold,
		duration:  cfg.LockoutDuration,
		recordTTL: cfg.LockoutRecordTTL,
		now:       now,
	}
}

// NormalizeEmail lowercases and trims an email for use as a tracker key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Status returns the current lockout state for an email. An expired lock is
// cleared lazily here; no proactive transition is needed.
func (t *LockoutTracker) Status(email string) LockoutStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[NormalizeEmail(email)]
	if !ok {
		return LockoutStatus{AttemptsRemaining: t.threshold}
	}
	return t.statusLocked(email, rec)
}

// RecordFailure registers a failed login for an email and returns the
// resulting state. The attempt that reaches the threshold sets the lock.
func (t *LockoutTracker) RecordFailure(email string) LockoutStatus {
	key := NormalizeEmail(email)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		rec = &lockoutRecord{}
		t.records[key] = rec
	}

	// An expired lock resets the counter before the new failure counts
	if rec.lockedUntil != nil && !now.Before(*rec.lockedUntil) {
		rec.attempts = 0
		rec.lockedUntil = nil
	}

	// Failures while locked do not extend the lock
	if rec.lockedUntil == nil {
		rec.attempts++
		rec.lastAttemptAt = now
		if rec.attempts >= t.threshold {
			until := now.Add(t.duration)
			rec.lockedUntil = &until
		}
	}

	return t.statusLocked(email, rec)
}

// Clear removes the record for an email, used on successful login
func (t *LockoutTracker) Clear(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, NormalizeEmail(email))
}

// Sweep purges expired locks and idle failure records. Runs over a snapshot
// of keys so foreground access is not stalled.
func (t *LockoutTracker) Sweep() {
	now := t.now()

	t.mu.Lock()
	keys := make([]string, 0, len(t.records))
	for key := range t.records {
		keys = append(keys, key)
	}
	t.mu.Unlock()

	for _, key := range keys {
		t.mu.Lock()
		rec, ok := t.records[key]
		if ok {
			lockExpired := rec.lockedUntil != nil && !now.Before(*rec.lockedUntil)
			idle := rec.lockedUntil == nil && now.Sub(rec.lastAttemptAt) > t.recordTTL
			if lockExpired || idle {
				delete(t.records, key)
			}
		}
		t.mu.Unlock()
	}
}

// statusLocked computes the status for a record; caller holds the mutex.
func (t *LockoutTracker) statusLocked(_ string, rec *lockoutRecord) LockoutStatus {
	now := t.now()
	if rec.lockedUntil != nil {
		if now.Before(*rec.lockedUntil) {
			return LockoutStatus{
				Locked:    true,
				Remaining: rec.lockedUntil.Sub(now),
				Attempts:  rec.attempts,
			}
		}
		// Lock elapsed, treated as a fresh record
		return LockoutStatus{AttemptsRemaining: t.threshold}
	}

	remaining := t.threshold - rec.attempts
	if remaining < 0 {
		remaining = 0
	}
	return LockoutStatus{
		Attempts:          rec.attempts,
		AttemptsRemaining: remaining,
	}
}
