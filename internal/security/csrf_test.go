package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenStore_IssueAndValidate(t *testing.T) {
	clock := newTestClock()
	store := NewCSRFTokenStore(testSecurityConfig(), clock.now)

	token, err := store.Issue("user:123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.True(t, store.Validate("user:123", token))
	assert.False(t, store.Validate("user:123", "wrong-token"))
	assert.False(t, store.Validate("user:456", token))
}

func TestCSRFTokenStore_ReissueInvalidatesPrevious(t *testing.T) {
	clock := newTestClock()
	store := NewCSRFTokenStore(testSecurityConfig(), clock.now)

	first, err := store.Issue("user:123")
	require.NoError(t, err)
	second, err := store.Issue("user:123")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.False(t, store.Validate("user:123", first))
	assert.True(t, store.Validate("user:123", second))
}

func TestCSRFTokenStore_Expiry(t *testing.T) {
	clock := newTestClock()
	store := NewCSRFTokenStore(testSecurityConfig(), clock.now)

	token, err := store.Issue("user:123")
	require.NoError(t, err)

	clock.advance(59 * time.Minute)
	assert.True(t, store.Validate("user:123", token))

	clock.advance(time.Minute)
	assert.False(t, store.Validate("user:123", token))

	// The expired entry was deleted on read
	store.mu.Lock()
	_, ok := store.entries["user:123"]
	store.mu.Unlock()
	assert.False(t, ok)
}

func TestCSRFTokenStore_UnknownSessionKey(t *testing.T) {
	clock := newTestClock()
	store := NewCSRFTokenStore(testSecurityConfig(), clock.now)

	assert.False(t, store.Validate("user:123", "anything"))
}

func TestCSRFTokenStore_TokensAreUnique(t *testing.T) {
	clock := newTestClock()
	store := NewCSRFTokenStore(testSecurityConfig(), clock.now)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := store.Issue("user:123")
		require.NoError(t, err)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestCSRFTokenStore_Sweep(t *testing.T) {
	clock := newTestClock()
	store := NewCSRFTokenStore(testSecurityConfig(), clock.now)

	_, err := store.Issue("user:old")
	require.NoError(t, err)

	clock.advance(2 * time.Hour)
	fresh, err := store.Issue("user:fresh")
	require.NoError(t, err)

	store.Sweep()

	store.mu.Lock()
	assert.Len(t, store.entries, 1)
	store.mu.Unlock()
	assert.True(t, store.Validate("user:fresh", fresh))
}

func TestSessionKeys(t *testing.T) {
	assert.Equal(t, "user:abc", UserSessionKey("abc"))

	key := AnonSessionKey("192.0.2.1", "Mozilla/5.0")
	assert.Contains(t, key, "anon:192.0.2.1:")
	// Same client derives the same key, a different UA derives another
	assert.Equal(t, key, AnonSessionKey("192.0.2.1", "Mozilla/5.0"))
	assert.NotEqual(t, key, AnonSessionKey("192.0.2.1", "curl/8.0"))
}
