// Package pathutil provides path and name validation utilities for tiersync.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/tiersync/tiersync/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateCacheName checks that a cache set name is safe to use in lock,
// state and ledger paths. Names are NFC normalized before checking.
func ValidateCacheName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("cache name must not be empty")
	}

	name = norm.NFC.String(name)

	if name == ".." || strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("cache name must not contain '..': %s", name)
	}

	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("cache name must not contain separators: %s", name)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("cache name must not contain control characters: %q", name)
		}
	}

	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("cache name must match [a-zA-Z0-9._-]+: %s", name)
	}

	return nil
}

// ValidateAbsolute checks that a configured path is absolute and clean.
func ValidateAbsolute(path string) error {
	if path == "" {
		return errclass.ErrConfigInvalid.WithMessage("path must not be empty")
	}
	if !filepath.IsAbs(path) {
		return errclass.ErrConfigInvalid.WithMessagef("path must be absolute: %s", path)
	}
	if path != filepath.Clean(path) {
		return errclass.ErrConfigInvalid.WithMessagef("path must be clean: %s", path)
	}
	return nil
}
