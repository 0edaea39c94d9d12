package update

import (
	"path"
	"slices"
	"strings"
)

// DefaultWindowsAssetNames are the installer names published for Windows,
// in priority order.
var DefaultWindowsAssetNames = []string{"nooltools.exe", "noltools.exe"}

// DefaultChecksumAsset is the checksum manifest attached to releases.
const DefaultChecksumAsset = "checksums.txt"

var (
	osAliases = map[string][]string{
		"windows": {"windows", "win", "win64", "win32"},
		"darwin":  {"darwin", "macos", "mac", "osx"},
		"linux":   {"linux"},
		"freebsd": {"freebsd"},
	}
	archAliases = map[string][]string{
		"amd64": {"amd64", "x64", "x86_64", "win64"},
		"arm64": {"arm64", "aarch64"},
		"386":   {"386", "i386", "x86", "win32"},
		"arm":   {"arm", "armv6", "armv7"},
	}
	// Archive and binary extensions an installable asset may carry. A bare
	// binary has none.
	assetExtensions = []string{"", ".exe", ".zip", ".tgz", ".gz", ".xz", ".bz2"}
)

// SelectAsset picks the release asset for the given platform.
//
// Explicit names win, compared case-insensitively in order. Otherwise an
// asset matches when its name mentions both an OS and an arch alias, or
// only the OS when the name carries no arch at all.
func SelectAsset(assets []Asset, names []string, goos, goarch string) (Asset, bool) {
	for _, want := range names {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, a := range assets {
			if strings.EqualFold(a.Name, want) {
				return a, true
			}
		}
	}

	var osOnly *Asset
	for i, a := range assets {
		if !slices.Contains(assetExtensions, assetExt(a.Name)) {
			continue
		}
		tokens := nameTokens(a.Name)
		if !anyToken(tokens, aliasesFor(osAliases, goos)) {
			continue
		}
		if anyToken(tokens, aliasesFor(archAliases, goarch)) {
			return a, true
		}
		if osOnly == nil && !mentionsAnyArch(tokens) {
			osOnly = &assets[i]
		}
	}
	if osOnly != nil {
		return *osOnly, true
	}
	return Asset{}, false
}

// HasAsset reports whether a release carries an asset named name.
func HasAsset(assets []Asset, name string) bool {
	for _, a := range assets {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

// assetExt returns the lowercased extension of name. A dot suffix holding
// separators or only digits is part of a version, not an extension.
func assetExt(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if strings.ContainsAny(ext, "-_ ") || strings.Trim(ext, ".0123456789") == "" {
		return ""
	}
	return ext
}

// nameTokens lowercases name and splits it on separators. x86_64 is kept as
// one token so it is not mistaken for a 32-bit x86 build.
func nameTokens(name string) map[string]bool {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "x86_64", "x86-64")
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	}) {
		tokens[tok] = true
	}
	if strings.Contains(s, "x86-64") {
		tokens["x86_64"] = true
		delete(tokens, "x86")
	}
	return tokens
}

func aliasesFor(table map[string][]string, key string) []string {
	if aliases, ok := table[key]; ok {
		return aliases
	}
	return []string{key}
}

func anyToken(tokens map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if tokens[c] {
			return true
		}
	}
	return false
}

func mentionsAnyArch(tokens map[string]bool) bool {
	for _, aliases := range archAliases {
		if anyToken(tokens, aliases) {
			return true
		}
	}
	return false
}
