package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthServiceSignInAndParse(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, "operator-pass", testLogger())

	token, err := svc.SignIn("operator-pass")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestAuthServiceWrongPassword(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, "operator-pass", testLogger())

	_, err := svc.SignIn("wrong")
	assert.Error(t, err)
}

func TestAuthServicePasswordNotConfigured(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour, "", testLogger())

	_, err := svc.SignIn("")
	assert.Error(t, err)
}

func TestAuthServiceRejectsForeignToken(t *testing.T) {
	issuer := NewAuthService("secret-a", time.Hour, "pass", testLogger())
	verifier := NewAuthService("secret-b", time.Hour, "pass", testLogger())

	token, err := issuer.SignIn("pass")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute, "pass", testLogger())

	token, err := svc.SignIn("pass")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.Error(t, err)
}
