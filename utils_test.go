package manifestd

import (
	"testing"
)

func TestEnsureScheme(t *testing.T) {
	cases := map[string]string{
		"example.com":          "http://example.com",
		"http://example.com":   "http://example.com",
		"https://example.com":  "https://example.com",
		"example.com/app.json": "http://example.com/app.json",
	}
	for in, want := range cases {
		if got := EnsureScheme(in); got != want {
			t.Errorf("EnsureScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewManifestID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewManifestID()
		if len(id) != 8 {
			t.Fatalf("expected 8-character id, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
