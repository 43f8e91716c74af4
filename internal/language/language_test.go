package language

import (
	"testing"

	"golang.org/x/text/language"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":      Auto,
		" AUTO": Auto,
		"en":    "en",
		"EN-us": "en",
		"ur":    "ur",
		"hin":   "hi",
		"ar":    "ar",
	}
	for in, want := range tests {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := Normalize("not a language!"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestTagAndName(t *testing.T) {
	if Tag(Auto) != language.Und {
		t.Fatalf("auto should map to Und")
	}
	if Tag("tr") != language.Turkish {
		t.Fatalf("unexpected tag for tr: %v", Tag("tr"))
	}
	if got := Name("ur"); got != "Urdu" {
		t.Fatalf("Name(ur) = %q", got)
	}
	if got := Name(Auto); got != "auto-detect" {
		t.Fatalf("Name(auto) = %q", got)
	}
}

func TestDetected(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"english", "en", true},
		{" Urdu ", "ur", true},
		{"haitian creole", "ht", true},
		{"hi", "hi", true},
		{"", "", false},
		{"auto", "", false},
		{"klingon!", "", false},
	}
	for _, tc := range tests {
		got, ok := Detected(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Detected(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
