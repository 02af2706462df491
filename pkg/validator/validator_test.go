package validator

import (
	"math"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func ptr(s string) *string { return &s }

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("ana@x.com", "Ana", "Secret123")
	assert.Equal(t, errs.HasErrors(), false)

	errs = ValidateRegister("not-an-email", "A", "short")
	assert.Equal(t, errs["email"], "Invalid email address")
	assert.Equal(t, errs["display_name"], "Display name must be at least 2 characters")
	assert.Equal(t, errs["password"], "Password must be at least 8 characters")

	errs = ValidateRegister("ana@x.com", "Ana", "alllowercase")
	assert.Equal(t, errs["password"], "Password must contain at least one uppercase letter, one number")
}

func TestValidateLogin(t *testing.T) {
	errs := ValidateLogin("", "")
	assert.Equal(t, errs["email"], "Email is required")
	assert.Equal(t, errs["password"], "Password is required")
}

func TestValidateProfileUpdate(t *testing.T) {
	assert.Equal(t, ValidateProfileUpdate(nil, nil)["body"], "Nothing to update")
	assert.Equal(t, ValidateProfileUpdate(ptr("Ana B"), nil).HasErrors(), false)
	// an empty photo url clears the photo
	assert.Equal(t, ValidateProfileUpdate(nil, ptr("")).HasErrors(), false)
	assert.Equal(t, ValidateProfileUpdate(nil, ptr("ftp://host/a.png"))["photo_url"], "Photo URL must be an http(s) URL")
	assert.Equal(t, ValidateProfileUpdate(nil, ptr("https://cdn.example/a.png")).HasErrors(), false)
}

func TestValidateMood(t *testing.T) {
	assert.Equal(t, ValidateMood("🎧", "focus").HasErrors(), false)
	assert.Equal(t, ValidateMood(" ", "")["emoji"], "Emoji is required")
	assert.Equal(t, ValidateMood("🎧", strings.Repeat("a", maxMoodText+1)).HasErrors(), true)
}

func TestValidateConnectionUpdate(t *testing.T) {
	assert.Equal(t, ValidateConnectionUpdate(nil, nil)["body"], "Nothing to update")
	assert.Equal(t, ValidateConnectionUpdate(ptr("benny"), nil).HasErrors(), false)
	assert.Equal(t, ValidateConnectionUpdate(ptr(strings.Repeat("ж", maxNickname+1)), nil)["nickname"], "Nickname is too long")
}

func TestValidateLocation(t *testing.T) {
	acc := 5.0
	neg := -1.0
	nan := math.NaN()

	assert.Equal(t, ValidateLocation(45.8, 15.97, &acc).HasErrors(), false)
	assert.Equal(t, ValidateLocation(-90, 180, nil).HasErrors(), false)

	errs := ValidateLocation(91, -181, &neg)
	assert.Equal(t, len(errs), 3)

	assert.Equal(t, ValidateLocation(nan, 0, &nan).HasErrors(), true)
}

func TestValidateMessage(t *testing.T) {
	assert.Equal(t, ValidateMessage(" hi ").HasErrors(), false)
	assert.Equal(t, ValidateMessage("   ")["text"], "Message text is required")
	assert.Equal(t, ValidateMessage(strings.Repeat("x", maxMessage+1)).HasErrors(), true)
}
