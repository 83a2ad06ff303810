package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	// ErrCityEmpty is returned when city is empty or whitespace-only after trim.
	ErrCityEmpty = errors.New("city is required")
	// ErrCityTooShort is returned when city length is below the minimum.
	ErrCityTooShort = errors.New("city too short")
	// ErrCityTooLong is returned when city length exceeds the maximum.
	ErrCityTooLong = errors.New("city too long")
	// ErrCityInvalidChars is returned when city contains disallowed characters.
	ErrCityInvalidChars = errors.New("city contains invalid characters")
	// ErrDateInvalid is returned when a date is neither YYYY-MM-DD nor "today".
	ErrDateInvalid = errors.New("date must be YYYY-MM-DD or today")
)

// ValidateCity trims the input, enforces length bounds (minLen, maxLen in runes; 0 disables),
// and restricts to letters (Unicode), digits, space, comma, hyphen, period and apostrophe.
// Case is preserved: the cache key uses the city exactly as given.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrCityEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrCityTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// CacheCity trims the input and requires it to be non-empty. Eviction keys never
// reach the provider URL, so no length or charset rules apply.
func CacheCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrCityEmpty
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateDate accepts "today" (returned as-is, case-folded) or a calendar date in
// YYYY-MM-DD form, which is returned unchanged.
func ValidateDate(input string) (string, error) {
	s := strings.TrimSpace(input)
	if strings.EqualFold(s, "today") {
		return "today", nil
	}
	if err := validate.Var(s, "required,datetime=2006-01-02"); err != nil {
		return "", ErrDateInvalid
	}
	return s, nil
}
