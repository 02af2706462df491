package validator

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	maxMoodText  = 140
	maxNickname  = 50
	maxMessage   = 500
	maxPhotoURL  = 2048
	maxNameRunes = 100
)

func ValidateRegister(email, displayName, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, "email", errs)
	validateDisplayName(displayName, errs)
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateEmail(email, "email", errs)
	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidateProfileUpdate(displayName, photoURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	if displayName == nil && photoURL == nil {
		errs.Add("body", "Nothing to update")
	}
	if displayName != nil {
		validateDisplayName(*displayName, errs)
	}
	if photoURL != nil && *photoURL != "" {
		validatePhotoURL(*photoURL, "photo_url", errs)
	}

	return errs
}

func ValidateConnectionRequest(email string) ValidationErrors {
	errs := make(ValidationErrors)
	validateEmail(email, "email", errs)
	return errs
}

func ValidateMood(emoji, text string) ValidationErrors {
	errs := make(ValidationErrors)

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		errs.Add("emoji", "Emoji is required")
	} else if utf8.RuneCountInString(emoji) > 8 {
		errs.Add("emoji", "Emoji is too long")
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) > maxMoodText {
		errs.Add("text", fmt.Sprintf("Mood text must be at most %d characters", maxMoodText))
	}

	return errs
}

func ValidateConnectionUpdate(nickname, photoURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	if nickname == nil && photoURL == nil {
		errs.Add("body", "Nothing to update")
	}
	if nickname != nil && utf8.RuneCountInString(strings.TrimSpace(*nickname)) > maxNickname {
		errs.Add("nickname", "Nickname is too long")
	}
	if photoURL != nil && *photoURL != "" {
		validatePhotoURL(*photoURL, "photo_url", errs)
	}

	return errs
}

func ValidateLocation(latitude, longitude float64, accuracy *float64) ValidationErrors {
	errs := make(ValidationErrors)

	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		errs.Add("latitude", "Latitude must be between -90 and 90")
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		errs.Add("longitude", "Longitude must be between -180 and 180")
	}
	if accuracy != nil && (math.IsNaN(*accuracy) || *accuracy < 0) {
		errs.Add("accuracy", "Accuracy cannot be negative")
	}

	return errs
}

func ValidateMessage(text string) ValidationErrors {
	errs := make(ValidationErrors)

	text = strings.TrimSpace(text)
	if text == "" {
		errs.Add("text", "Message text is required")
	} else if utf8.RuneCountInString(text) > maxMessage {
		errs.Add("text", fmt.Sprintf("Message must be at most %d characters", maxMessage))
	}

	return errs
}

func validateEmail(email, field string, errs ValidationErrors) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add(field, "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add(field, "Invalid email address")
	}
}

func validateDisplayName(displayName string, errs ValidationErrors) {
	displayName = strings.TrimSpace(displayName)
	n := utf8.RuneCountInString(displayName)
	if displayName == "" {
		errs.Add("display_name", "Display name is required")
	} else if n < 2 {
		errs.Add("display_name", "Display name must be at least 2 characters")
	} else if n > maxNameRunes {
		errs.Add("display_name", "Display name is too long")
	}
}

func validatePhotoURL(raw, field string, errs ValidationErrors) {
	if len(raw) > maxPhotoURL {
		errs.Add(field, "Photo URL is too long")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		errs.Add(field, "Photo URL must be an http(s) URL")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
