package htmlsanitize_test

import (
	"testing"

	"github.com/globaltrotter/globaltrotter/internal/app/system/htmlsanitize"
)

func TestStripTags_Empty(t *testing.T) {
	if got := htmlsanitize.StripTags(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestStripTags_PlainText(t *testing.T) {
	if got := htmlsanitize.StripTags("Fushimi Inari"); got != "Fushimi Inari" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestStripTags_RemovesMarkup(t *testing.T) {
	got := htmlsanitize.StripTags("<b>Kyoto</b> temples")
	if got != "Kyoto temples" {
		t.Errorf("expected tags removed, got %q", got)
	}
}

func TestStripTags_RemovesScriptContent(t *testing.T) {
	got := htmlsanitize.StripTags("Hi<script>alert('xss')</script>")
	if got != "Hi" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestStripTags_KeepsAmpersand(t *testing.T) {
	got := htmlsanitize.StripTags("Bed & Breakfast")
	if got != "Bed & Breakfast" {
		t.Errorf("expected entities decoded, got %q", got)
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"Hello, World!", true},
		{"Rock & Roll", true},
		{"<p>Hello</p>", false},
		{`<a href="x">link</a>`, false},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.input); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
