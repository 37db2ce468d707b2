// Package assets resolves profile/provider/map names to file:// URLs
// under a local assets directory, the same pure-string job
// InternalClient.resolve_profile_url/resolve_provider_url/resolve_map_url
// do in client.py.
package assets

import (
	"path/filepath"
	"strings"
)

// Resolver turns profile/provider names into file:// URLs rooted at a
// local assets directory.
type Resolver struct {
	assetsPath string
}

// NewResolver returns a Resolver rooted at assetsPath.
func NewResolver(assetsPath string) *Resolver {
	return &Resolver{assetsPath: assetsPath}
}

// ProfileURL resolves "scope/name" style profile identifiers to
// {assetsPath}/scope.name.profile, matching resolve_profile_url's
// '/' -> '.' substitution.
func (r *Resolver) ProfileURL(profile string) (string, error) {
	resolved := strings.ReplaceAll(profile, "/", ".")
	path, err := filepath.Abs(filepath.Join(r.assetsPath, resolved+".profile"))
	if err != nil {
		return "", err
	}
	return "file://" + path, nil
}

// ProviderURL resolves a provider name to {assetsPath}/name.provider.json.
func (r *Resolver) ProviderURL(provider string) (string, error) {
	path, err := filepath.Abs(filepath.Join(r.assetsPath, provider+".provider.json"))
	if err != nil {
		return "", err
	}
	return "file://" + path, nil
}

// MapURL resolves a profile/provider pair to
// {assetsPath}/scope.name.provider.map.js.
func (r *Resolver) MapURL(profile, provider string) (string, error) {
	resolved := strings.ReplaceAll(profile, "/", ".")
	path, err := filepath.Abs(filepath.Join(r.assetsPath, resolved+"."+provider+".map.js"))
	if err != nil {
		return "", err
	}
	return "file://" + path, nil
}
