package core

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DefaultFileName is used when neither the request nor the URL yields a name.
const DefaultFileName = "download"

// ValidateFileName checks that name is usable as a single path leaf.
func ValidateFileName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidFileName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFileName, name)
	}
	return nil
}

// ResolveFileName returns the preferred name when it is set and not blank,
// otherwise fallback.
func ResolveFileName(preferred *string, fallback string) string {
	if preferred != nil && strings.TrimSpace(*preferred) != "" {
		return *preferred
	}
	return fallback
}

// FileNameFromURL derives a name from the last path segment of rawURL.
func FileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultFileName
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return DefaultFileName
	}
	// Windows-style separators survive path.Base.
	base = strings.ReplaceAll(base, "\\", "_")
	if ValidateFileName(base) != nil {
		return DefaultFileName
	}
	return base
}

// UniqueFileName returns name, or "name (n).ext" with the smallest n >= 1 for
// which exists reports false.
func UniqueFileName(name string, exists func(string) bool) string {
	if !exists(name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if !exists(candidate) {
			return candidate
		}
	}
}
