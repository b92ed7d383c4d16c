// Package security provides validation, sanitization, and limits shared by
// the registry, orchestrator, storage, config, and worker packages.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/durableflow/internal/core"
)

// Limits and configuration.
const (
	// MaxFunctionNameLength is the maximum length for an external function name.
	MaxFunctionNameLength = 255

	// MaxArgsSize is the maximum size in bytes for a call's argument payload (1MB).
	MaxArgsSize = 1 << 20

	// MaxCodeSize is the maximum size in bytes for a workflow program (4MB).
	MaxCodeSize = 4 << 20

	// MaxConcurrency is the hard limit for worker concurrency.
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096
)

// validFunctionName matches alphanumeric, hyphens, underscores, and dots,
// starting with a letter — the same shape the teacher used for job type
// names, since an external function name plays the same role.
var validFunctionName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateFunctionName rejects empty, too-long, or non-identifier-shaped
// function names before they ever reach a Registry or an Executor.
func ValidateFunctionName(name string) error {
	if name == "" {
		return core.ErrInvalidFunctionName
	}
	if len(name) > MaxFunctionNameLength {
		return core.ErrFunctionNameTooLong
	}
	if !validFunctionName.MatchString(name) {
		return core.ErrInvalidFunctionName
	}
	return nil
}

// ValidateArgsSize rejects argument payloads over MaxArgsSize.
func ValidateArgsSize(args []byte) error {
	if len(args) > MaxArgsSize {
		return core.ErrArgsTooLarge
	}
	return nil
}

// ValidateCodeSize rejects workflow program payloads over MaxCodeSize.
func ValidateCodeSize(code []byte) error {
	if len(code) > MaxCodeSize {
		return core.ErrCodeTooLarge
	}
	return nil
}

// SanitizeErrorMessage strips control characters and truncates for storage,
// so a misbehaving external function can't blow out the error column or
// smuggle terminal escape sequences into logs.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))
	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}
	return result
}

// ClampConcurrency ensures a worker's configured concurrency is within limits.
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
