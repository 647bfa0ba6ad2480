package auth_test

import (
	"context"
	"testing"
	"time"

	"guestbooklet/internal/auth"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"guestbooklet/internal/security"
	"guestbooklet/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Register(t *testing.T) {
	tc := testutil.NewTestContext(t)
	ctx := context.Background()

	result, err := tc.AuthService.Register(ctx, models.RegisterRequest{
		Email:    "Alice@Example.com",
		Password: "Passw0rd1",
		Name:     "Alice",
	})
	require.NoError(t, err)
	require.NotNil(t, result.User)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "user", result.User.Role)

	// The stored hash verifies against the submitted password
	require.NoError(t, tc.AuthService.ComparePasswords(result.User.PasswordHash, "Passw0rd1"))

	// A trial subscription was created alongside the account
	sub, err := tc.SubRepo.GetByUserID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierTrial, sub.Tier)

	// The welcome email is dispatched asynchronously
	assert.Eventually(t, func() bool {
		return len(tc.Email.Welcomes) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")

	_, err := tc.AuthService.Register(context.Background(), models.RegisterRequest{
		Email:    "ALICE@example.com",
		Password: "Passw0rd1",
		Name:     "Imposter",
	})
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestService_RegisterRejectsWeakPassword(t *testing.T) {
	tc := testutil.NewTestContext(t)

	_, err := tc.AuthService.Register(context.Background(), models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "abc12345",
		Name:     "Alice",
	})
	assert.ErrorIs(t, err, auth.ErrPasswordNoUpper)

	// Nothing was persisted
	_, err = tc.UserRepo.GetByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestService_RegisterRejectsInvalidEmail(t *testing.T) {
	tc := testutil.NewTestContext(t)

	_, err := tc.AuthService.Register(context.Background(), models.RegisterRequest{
		Email:    "not-an-email",
		Password: "Passw0rd1",
		Name:     "Alice",
	})
	assert.Error(t, err)
}

func TestService_Login(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")

	result, err := tc.AuthService.Login(context.Background(), "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)

	claims, err := tc.AuthService.VerifySession(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestService_LoginWrongPassword(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")

	result, err := tc.AuthService.Login(context.Background(), "alice@example.com", "WrongPass1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, 4, result.AttemptsRemaining)
	assert.False(t, result.Locked)
}

func TestService_LoginUnknownEmail(t *testing.T) {
	tc := testutil.NewTestContext(t)

	result, err := tc.AuthService.Login(context.Background(), "nobody@example.com", "Passw0rd1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, 4, result.AttemptsRemaining)

	// Failures against unknown emails count toward a lockout too
	assert.Equal(t, 1, tc.Lockout.Status("nobody@example.com").Attempts)
}

func TestService_LoginLockout(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result, err := tc.AuthService.Login(ctx, "alice@example.com", "WrongPass1")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.False(t, result.Locked)
	}

	// Fifth failure sets the lock
	result, err := tc.AuthService.Login(ctx, "alice@example.com", "WrongPass1")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.True(t, result.Locked)
	assert.Equal(t, 30, result.LockedForMinutes)

	// Even the correct password is rejected while locked
	result, err = tc.AuthService.Login(ctx, "alice@example.com", "Passw0rd1")
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
	assert.True(t, result.Locked)

	// The lock expires on its own
	tc.Clock.Advance(30 * time.Minute)
	_, err = tc.AuthService.Login(ctx, "alice@example.com", "Passw0rd1")
	assert.NoError(t, err)
}

func TestService_LoginSuccessResetsCounter(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := tc.AuthService.Login(ctx, "alice@example.com", "WrongPass1")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	_, err := tc.AuthService.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	// The slate is clean: four more failures do not lock
	for i := 0; i < 4; i++ {
		result, err := tc.AuthService.Login(ctx, "alice@example.com", "WrongPass1")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.False(t, result.Locked)
	}
}

func TestService_VerifySessionRejectsBadTokens(t *testing.T) {
	tc := testutil.NewTestContext(t)

	_, err := tc.AuthService.VerifySession("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Token signed with a different secret
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "4f5cd7c8-3f6b-4a3e-9f0a-111111111111",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	forgedString, err := forged.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)
	_, err = tc.AuthService.VerifySession(forgedString)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_VerifySessionExpired(t *testing.T) {
	t.Setenv("SESSION_TTL", "-1m")
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")

	token, err := tc.AuthService.GenerateToken(user)
	require.NoError(t, err)

	_, err = tc.AuthService.VerifySession(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestService_ChangePassword(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")
	ctx := context.Background()

	err := tc.AuthService.ChangePassword(ctx, user.ID, "short")
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)

	require.NoError(t, tc.AuthService.ChangePassword(ctx, user.ID, "NewPassw0rd"))

	_, err = tc.AuthService.Login(ctx, "alice@example.com", "Passw0rd1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = tc.AuthService.Login(ctx, "alice@example.com", "NewPassw0rd")
	assert.NoError(t, err)
}

func TestService_RequestPasswordReset(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")

	require.NoError(t, tc.AuthService.RequestPasswordReset(context.Background(), "alice@example.com"))

	var token string
	require.Eventually(t, func() bool {
		token = tc.Email.LastResetToken("alice@example.com")
		return token != ""
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, token, 64)
}

func TestService_RequestPasswordResetUnknownEmail(t *testing.T) {
	tc := testutil.NewTestContext(t)

	// Unknown emails report success and send nothing
	require.NoError(t, tc.AuthService.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Empty(t, tc.Email.ResetTokens)
}

func TestService_RequestPasswordResetBudget(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, tc.AuthService.RequestPasswordReset(ctx, "alice@example.com"))
	}

	err := tc.AuthService.RequestPasswordReset(ctx, "alice@example.com")
	assert.ErrorIs(t, err, security.ErrTooManyResetRequests)
}

func TestService_CompletePasswordReset(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")
	ctx := context.Background()

	require.NoError(t, tc.AuthService.RequestPasswordReset(ctx, "alice@example.com"))
	var token string
	require.Eventually(t, func() bool {
		token = tc.Email.LastResetToken("alice@example.com")
		return token != ""
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, tc.AuthService.CompletePasswordReset(ctx, token, "NewPassw0rd"))

	_, err := tc.AuthService.Login(ctx, "alice@example.com", "NewPassw0rd")
	assert.NoError(t, err)
	_, err = tc.AuthService.Login(ctx, "alice@example.com", "Passw0rd1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// The token is single use
	err = tc.AuthService.CompletePasswordReset(ctx, token, "AnotherPass1")
	assert.ErrorIs(t, err, security.ErrResetTokenUsed)
}

func TestService_CompletePasswordResetExpiredToken(t *testing.T) {
	tc := testutil.NewTestContext(t)
	tc.CreateTestUser("alice@example.com", "Passw0rd1", "Alice")
	ctx := context.Background()

	require.NoError(t, tc.AuthService.RequestPasswordReset(ctx, "alice@example.com"))
	var token string
	require.Eventually(t, func() bool {
		token = tc.Email.LastResetToken("alice@example.com")
		return token != ""
	}, time.Second, 10*time.Millisecond)

	tc.Clock.Advance(31 * time.Minute)
	err := tc.AuthService.CompletePasswordReset(ctx, token, "NewPassw0rd")
	assert.ErrorIs(t, err, security.ErrResetTokenExpired)

	// The old password still works
	_, err = tc.AuthService.Login(ctx, "alice@example.com", "Passw0rd1")
	assert.NoError(t, err)
}
