package assets

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestProfileURLReplacesSlashesWithDots(t *testing.T) {
	r := NewResolver("superface")
	url, err := r.ProfileURL("scope/my-profile")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "scope.my-profile.profile") {
		t.Errorf("unexpected url: %s", url)
	}
}

func TestProviderURLAndMapURL(t *testing.T) {
	r := NewResolver("superface")

	providerURL, err := r.ProviderURL("my-provider")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.HasSuffix(providerURL, "my-provider.provider.json") {
		t.Errorf("unexpected provider url: %s", providerURL)
	}

	mapURL, err := r.MapURL("scope/my-profile", "my-provider")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.HasSuffix(mapURL, "scope.my-profile.my-provider.map.js") {
		t.Errorf("unexpected map url: %s", mapURL)
	}
}

func TestURLsAreAbsolute(t *testing.T) {
	r := NewResolver("relative/dir")
	url, err := r.ProfileURL("p")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	path := strings.TrimPrefix(url, "file://")
	if !filepath.IsAbs(path) {
		t.Errorf("expected an absolute path, got %s", path)
	}
}
