package models

import (
	"strings"
	"testing"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"short message kept as-is", "Hello", "Hello"},
		{"empty falls back", "", DefaultTitle},
		{"whitespace falls back", "   \n\t", DefaultTitle},
		{"surrounding whitespace trimmed", "  Hello  ", "Hello"},
		{"exactly at bound kept", strings.Repeat("a", TitleMaxLen), strings.Repeat("a", TitleMaxLen)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.content); got != tc.expected {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tc.content, got, tc.expected)
			}
		})
	}
}

func TestDeriveTitle_TruncatesToBound(t *testing.T) {
	long := strings.Repeat("x", 120)
	got := DeriveTitle(long)
	if len([]rune(got)) != TitleMaxLen {
		t.Errorf("Expected title of %d runes, got %d", TitleMaxLen, len([]rune(got)))
	}
	if got != long[:TitleMaxLen] {
		t.Errorf("Expected prefix truncation, got %q", got)
	}
}

func TestDeriveTitle_TruncatesRunesNotBytes(t *testing.T) {
	long := strings.Repeat("é", 80)
	got := DeriveTitle(long)
	if n := len([]rune(got)); n != TitleMaxLen {
		t.Errorf("Expected %d runes, got %d", TitleMaxLen, n)
	}
}

func TestValidRole(t *testing.T) {
	tests := []struct {
		role  string
		valid bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{"system", false},
		{"", false},
		{"User", false},
	}

	for _, tc := range tests {
		if got := ValidRole(tc.role); got != tc.valid {
			t.Errorf("ValidRole(%q) = %v, want %v", tc.role, got, tc.valid)
		}
	}
}
