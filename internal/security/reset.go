package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"guestbooklet/internal/config"
	"sync"
	"time"

	"github.com/google/uuid"
)

const resetTokenLength = 32 // 256 bits of entropy

var (
	// ErrTooManyResetRequests indicates the per-user request budget is spent
	ErrTooManyResetRequests = errors.New("too many reset requests")
	// ErrResetTokenNotFound indicates no entry exists for the token
	ErrResetTokenNotFound = errors.New("reset token not found")
	// ErrResetTokenUsed indicates the token was already consumed or superseded
	ErrResetTokenUsed = errors.New("reset token already used")
	// ErrResetTokenExpired indicates the token outlived its validity window
	ErrResetTokenExpired = errors.New("reset token expired")
)

type resetEntry struct {
	userID    uuid.UUID
	createdAt time.Time
	expiresAt time.Time
	used      bool
}

// ResetLedger tracks single-use password reset tokens per user. Creating a
// new token supersedes all prior unused tokens for the same user; superseded
// tokens are soft-invalidated, never physically deleted at creation time.
type ResetLedger struct {
	mu            sync.Mutex
	entries       map[string]*resetEntry
	ttl           time.Duration
	requestLimit  int
	requestWindow time.Duration
	now           func() time.Time
}

// NewResetLedger creates a reset token ledger. A nil now function defaults to
// time.Now.
func NewResetLedger(cfg config.SecurityConfig, now func() time.Time) *ResetLedger {
	if now == nil {
		now = time.Now
	}
	return &ResetLedger{
		entries:       make(map[string]*resetEntry),
		ttl:           cfg.ResetTokenTTL,
		requestLimit:  cfg.ResetRequestLimit,
		requestWindow: cfg.ResetRequestWindow,
		now:           now,
	}
}

// Request creates a reset token for a user. Returns ErrTooManyResetRequests
// when the rolling request budget is spent. All prior unused tokens for the
// user are marked used in the same critical section, so two concurrent
// requests can never leave two simultaneously valid tokens.
func (l *ResetLedger) Request(userID uuid.UUID) (string, error) {
	b := make([]byte, resetTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	now := l.now()
	cutoff := now.Add(-l.requestWindow)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := 0
	for _, entry := range l.entries {
		if entry.userID == userID && entry.createdAt.After(cutoff) && now.Before(entry.expiresAt) {
			recent++
		}
	}
	if recent >= l.requestLimit {
		return "", ErrTooManyResetRequests
	}

	// Supersede prior unused tokens
	for _, entry := range l.entries {
		if entry.userID == userID && !entry.used {
			entry.used = true
		}
	}

	l.entries[token] = &resetEntry{
		userID:    userID,
		createdAt: now,
		expiresAt: now.Add(l.ttl),
	}
	return token, nil
}

// Consume marks a token used and returns the user it belongs to. An expired
// token is marked used as a side effect so it cannot be probed again. On
// success every other unused token for the same user is marked used as well.
func (l *ResetLedger) Consume(token string) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[token]
	if !ok {
		return uuid.Nil, ErrResetTokenNotFound
	}
	if entry.used {
		return uuid.Nil, ErrResetTokenUsed
	}
	if !l.now().Before(entry.expiresAt) {
		entry.used = true
		return uuid.Nil, ErrResetTokenExpired
	}

	entry.used = true
	for _, other := range l.entries {
		if other.userID == entry.userID && !other.used {
			other.used = true
		}
	}
	return entry.userID, nil
}

// ActiveTokenCount returns the number of live tokens for a user
func (l *ResetLedger) ActiveTokenCount(userID uuid.UUID) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, entry := range l.entries {
		if entry.userID == userID && !entry.used && now.Before(entry.expiresAt) {
			count++
		}
	}
	return count
}

// Sweep purges used and expired entries over a key snapshot
func (l *ResetLedger) Sweep() {
	now := l.now()

	l.mu.Lock()
	keys := make([]string, 0, len(l.entries))
	for key := range l.entries {
		keys = append(keys, key)
	}
	l.mu.Unlock()

	for _, key := range keys {
		l.mu.Lock()
		if entry, ok := l.entries[key]; ok && (entry.used || !now.Before(entry.expiresAt)) {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
