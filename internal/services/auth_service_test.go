package services

import (
	"testing"
	"time"

	"shopdesk-realtime/internal/domain/user"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	auth := NewAuthService("secret", time.Minute)
	p := user.Profile{ID: uuid.New(), Name: "Lan", Avatar: "lan.png", Staff: true}

	token, err := auth.IssueAccessToken(p)
	require.NoError(t, err)

	got, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	auth := NewAuthService("secret", time.Minute)
	p := user.Profile{ID: uuid.New(), Name: "Lan"}

	other, err := NewAuthService("other", time.Minute).IssueAccessToken(p)
	require.NoError(t, err)
	expired, err := NewAuthService("secret", -time.Minute).IssueAccessToken(p)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{Name: "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"wrong key":  other,
		"expired":    expired,
		"no subject": noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Authenticate(token)
			assert.ErrorIs(t, err, shopdesk_errors.ErrUnauthorized)
		})
	}
}
