package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCity_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateCity(tc.input, 1, 100)
			if !errors.Is(err, ErrCityEmpty) {
				t.Errorf("error = %v, want ErrCityEmpty", err)
			}
		})
	}
}

func TestValidateCity_Length(t *testing.T) {
	if _, err := ValidateCity("x", 2, 100); !errors.Is(err, ErrCityTooShort) {
		t.Errorf("error = %v, want ErrCityTooShort", err)
	}
	if _, err := ValidateCity(strings.Repeat("a", 101), 1, 100); !errors.Is(err, ErrCityTooLong) {
		t.Errorf("error = %v, want ErrCityTooLong", err)
	}
	// Length is counted in runes, not bytes.
	if _, err := ValidateCity(strings.Repeat("é", 100), 1, 100); err != nil {
		t.Errorf("100-rune city error = %v, want nil", err)
	}
	if _, err := ValidateCity(strings.Repeat("a", 500), 0, 0); err != nil {
		t.Errorf("bounds disabled error = %v, want nil", err)
	}
}

func TestValidateCity_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Cairo", "Cairo"},
		{"  New York  ", "New York"},
		{"Winston-Salem", "Winston-Salem"},
		{"St. John's", "St. John's"},
		{"Paris,FR", "Paris,FR"},
		{"São Paulo", "São Paulo"},
		{"東京", "東京"},
		{"10001", "10001"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ValidateCity(tc.input, 1, 100)
			if err != nil {
				t.Fatalf("ValidateCity(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ValidateCity(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateCity_InvalidChars(t *testing.T) {
	for _, input := range []string{"Cairo/Giza", "a?b", "x%20y", "city;drop", "<script>", "a\nb"} {
		t.Run(input, func(t *testing.T) {
			if _, err := ValidateCity(input, 1, 100); !errors.Is(err, ErrCityInvalidChars) {
				t.Errorf("ValidateCity(%q) error = %v, want ErrCityInvalidChars", input, err)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2026-10-18", "2026-10-18", false},
		{" today ", "today", false},
		{"TODAY", "today", false},
		{"2026-02-30", "", true},
		{"18-10-2026", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ValidateDate(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrDateInvalid) {
					t.Errorf("ValidateDate(%q) error = %v, want ErrDateInvalid", tc.input, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ValidateDate(%q) = %q, %v; want %q", tc.input, got, err, tc.want)
			}
		})
	}
}

func TestCacheCity(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"", "", ErrCityEmpty},
		{" \t ", "", ErrCityEmpty},
		{"  London ", "London", nil},
		{"Frankfurt (Oder)", "Frankfurt (Oder)", nil},
		{"N’Djamena", "N’Djamena", nil},
		{"a/b", "a/b", nil},
		{strings.Repeat("x", 300), strings.Repeat("x", 300), nil},
	}
	for _, tt := range tests {
		got, err := CacheCity(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("CacheCity(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CacheCity(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
