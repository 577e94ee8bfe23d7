package service

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	slugRe     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)
)

// Пределы длины полей (совпадают со схемой БД).
const (
	maxTitle       = 200
	maxSlug        = 220
	maxSummary     = 500
	maxDescription = 500
	maxCategory    = 100
	maxTag         = 50
	maxComment     = 2000
	maxGuestName   = 100
	maxBio         = 500
	maxSearch      = 100
	maxPassword    = 72 // предел bcrypt
)

// normalizeEmail проверяет формат и приводит к нижнему регистру.
func normalizeEmail(field, raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", Invalid(field, "is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", Invalid(field, "must be a valid e-mail address")
	}

	return strings.ToLower(email), nil
}

// validatePassword: длина 8..72 байт, строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	if pw == "" {
		return Invalid("password", "is required")
	}

	if utf8.RuneCountInString(pw) < 8 || len(pw) > maxPassword {
		return Invalid("password", "must be 8 to 72 characters long")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return Invalid("password", "must contain lower and upper case letters, a digit and a symbol")
	}

	return nil
}

func validateUsername(name string) error {
	if !usernameRe.MatchString(name) {
		return Invalid("username", "must be 3 to 50 letters, digits, '_' or '-'")
	}

	return nil
}

// requireText: непустая (после обрезки пробелов) строка не длиннее max рун.
func requireText(field, v string, max int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", Invalid(field, "is required")
	}

	if utf8.RuneCountInString(v) > max {
		return "", Invalid(field, "is too long")
	}

	return v, nil
}

// optionalText: nil — не задано; пустая строка очищает значение (nil).
func optionalText(field string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}

	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, nil
	}

	if max > 0 && utf8.RuneCountInString(t) > max {
		return nil, Invalid(field, "is too long")
	}

	return &t, nil
}

// optionalURL — как optionalText, но значение должно быть абсолютным http(s) URL.
func optionalURL(field string, v *string) (*string, error) {
	t, err := optionalText(field, v, 0)
	if err != nil || t == nil {
		return t, err
	}

	u, err := url.Parse(*t)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, Invalid(field, "must be an absolute http(s) URL")
	}

	return t, nil
}

// resolveSlug: явный slug проверяется, пустой выводится из source.
func resolveSlug(field, explicit, source string) (string, error) {
	slug := strings.TrimSpace(explicit)
	if slug == "" {
		slug = Slugify(source)
		if slug == "" {
			return "", Invalid(field, "cannot be derived, provide it explicitly")
		}
	}

	if len(slug) > maxSlug || !slugRe.MatchString(slug) {
		return "", Invalid(field, "must contain only lowercase letters, digits and single hyphens")
	}

	return slug, nil
}
