package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture()
	auth := NewAuthService(f.store.Profiles(), testSecret)
	ctx := context.Background()

	reg, err := auth.Register(ctx, RegisterInput{Email: " ana@x.com ", DisplayName: " Ana ", Password: "Secret123"})
	assert.Equal(t, err, nil)
	assert.Equal(t, reg.Profile.Email, "ana@x.com")
	assert.Equal(t, reg.Profile.DisplayName, "Ana")
	assert.NotEqual(t, reg.Profile.PasswordHash, "Secret123")
	assert.NotEqual(t, reg.AccessToken, "")

	token, err := jwt.Parse(reg.AccessToken, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	assert.Equal(t, err, nil)
	sub, _ := token.Claims.GetSubject()
	assert.Equal(t, sub, reg.Profile.ID.String())

	login, err := auth.Login(ctx, LoginInput{Email: "ANA@x.com", Password: "Secret123"})
	assert.Equal(t, err, nil)
	assert.Equal(t, login.Profile.ID, reg.Profile.ID)

	_, err = auth.Login(ctx, LoginInput{Email: "ana@x.com", Password: "wrong"})
	assert.Equal(t, errors.Is(err, ErrInvalidCreds), true)

	_, err = auth.Login(ctx, LoginInput{Email: "nobody@x.com", Password: "Secret123"})
	assert.Equal(t, errors.Is(err, ErrInvalidCreds), true)
}

func TestRegisterEmailTaken(t *testing.T) {
	f := newFixture()
	auth := NewAuthService(f.store.Profiles(), testSecret)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Email: "ana@x.com", DisplayName: "Ana", Password: "Secret123"})
	assert.Equal(t, err, nil)

	_, err = auth.Register(ctx, RegisterInput{Email: "Ana@X.com", DisplayName: "Other", Password: "Secret123"})
	assert.Equal(t, errors.Is(err, ErrEmailTaken), true)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("Secret123")
	assert.Equal(t, err, nil)
	assert.Equal(t, verifyPassword("Secret123", hash), true)
	assert.Equal(t, verifyPassword("Secret124", hash), false)
	assert.Equal(t, verifyPassword("Secret123", "garbage"), false)
}
