package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "valid password",
			password: "Abc12345",
			wantErr:  nil,
		},
		{
			name:     "valid with symbols",
			password: "S3cure!Pass",
			wantErr:  nil,
		},
		{
			name:     "too short",
			password: "Ab1",
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "exactly seven characters",
			password: "Abc1234",
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "no uppercase",
			password: "abc12345",
			wantErr:  ErrPasswordNoUpper,
		},
		{
			name:     "no lowercase",
			password: "ABCDEFGH",
			wantErr:  ErrPasswordNoLower,
		},
		{
			name:     "no digit",
			password: "Abcdefgh",
			wantErr:  ErrPasswordNoDigit,
		},
		{
			name:     "empty",
			password: "",
			wantErr:  ErrPasswordTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordPolicy(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsPolicyViolation(err))
			}
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("alice@example.com"))
	assert.True(t, IsValidEmail("a.b+tag@sub.example.com"))
	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail("missing@domain@example.com"))
	assert.False(t, IsValidEmail(""))
}
