package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"guestbooklet/internal/config"
	"sync"
	"time"
)

const csrfTokenLength = 32 // 256 bits of entropy

type csrfEntry struct {
	token     string
	expiresAt time.Time
}

// CSRFTokenStore holds one live anti-CSRF token per session key. Issuing a
// new token replaces the previous one, which becomes invalid immediately.
type CSRFTokenStore struct {
	mu      sync.Mutex
	entries map[string]csrfEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCSRFTokenStore creates a CSRF token store. A nil now function defaults
// to time.Now.
func NewCSRFTokenStore(cfg config.SecurityConfig, now func() time.Time) *CSRFTokenStore {
	if now == nil {
		now = time.Now
	}
	return &CSRFTokenStore{
		entries: make(map[string]csrfEntry),
		ttl:     cfg.CSRFTokenTTL,
		now:     now,
	}
}

// UserSessionKey derives the session key for an authenticated user
func UserSessionKey(userID string) string {
	return "user:" + userID
}

// AnonSessionKey derives the session key for an anonymous client from its IP
// and a short hash of its user agent
func AnonSessionKey(clientIP, userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return fmt.Sprintf("anon:%s:%s", clientIP, hex.EncodeToString(sum[:])[:16])
}

// Issue generates a random token for the session key, replacing any prior one
func (s *CSRFTokenStore) Issue(sessionKey string) (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(b)

	s.mu.Lock()
	s.entries[sessionKey] = csrfEntry{
		token:     token,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token, nil
}

// Validate reports whether the presented token matches the live token for the
// session key. Expired entries are deleted on read and rejected.
func (s *CSRFTokenStore) Validate(sessionKey, presented string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionKey]
	if !ok {
		return false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, sessionKey)
		return false
	}

	return subtle.ConstantTimeCompare([]byte(entry.token), []byte(presented)) == 1
}

// Sweep removes expired entries. Iterates a key snapshot so issuance is not
// blocked for the duration of the pass.
func (s *CSRFTokenStore) Sweep() {
	now := s.now()

	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.mu.Lock()
		if entry, ok := s.entries[key]; ok && !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
	}
}
