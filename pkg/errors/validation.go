package errors

import (
	"strings"
	"unicode"
)

// MaxNameLength bounds the length of a tree node name.
const MaxNameLength = 256

// ValidateNodeName validates a tree node name for use in exported documents.
// Names appear verbatim in CSV, JSON and DOT output, so separators and
// control characters that would corrupt those formats are rejected.
func ValidateNodeName(name string) error {
	if name == "" {
		return New(ErrCodeStructural, "node name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return New(ErrCodeStructural, "node name too long (max %d characters)", MaxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeStructural, "node name %q contains control characters", name)
		}
	}

	if strings.ContainsAny(name, ",\"") {
		return New(ErrCodeStructural, "node name %q contains a comma or quote", name)
	}

	return nil
}

// ValidatePath validates a file path given on the command line or in a
// configuration file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
