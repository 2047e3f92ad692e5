package aggregate

import "testing"

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.ORG/Path", "https://example.org/path"},
		{"strips query string", "https://example.org/page?utm_source=x&ref=1", "https://example.org/page"},
		{"strips fragment", "https://example.org/page#section-2", "https://example.org/page"},
		{"trailing slash insignificant", "https://example.org/page/", "https://example.org/page"},
		{"root path collapses", "https://example.org/", "https://example.org"},
		{"empty input", "", ""},
		{"whitespace only", "   ", ""},
		{"unparseable falls back to lowercase", "not a url at all", "not a url at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.raw); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalURLEquivalence(t *testing.T) {
	// The same canonical page reached through different casings and query
	// strings must share one identity.
	variants := []string{
		"https://www.nejm.org/doi/full/10.1056/abc123",
		"HTTPS://WWW.NEJM.ORG/doi/full/10.1056/abc123?query=hypertension",
		"https://www.nejm.org/doi/full/10.1056/abc123/",
		"https://www.nejm.org/doi/full/10.1056/abc123#results",
	}

	want := CanonicalURL(variants[0])
	for _, v := range variants[1:] {
		if got := CanonicalURL(v); got != want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", v, got, want)
		}
	}
}
