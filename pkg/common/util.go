package common

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

func CutString(input string, cut int) string {
	if len(input) > cut {
		return input[:cut] + " ..." // cut long text
	}
	return input
}

const cutSuffix = " ..."

// TruncateString never exceeds max bytes, suffix included. Use it for values
// bound for capped columns, where CutString would overflow.
func TruncateString(input string, max int) string {
	if len(input) <= max {
		return input
	}
	if max <= len(cutSuffix) {
		return input[:max]
	}
	return input[:max-len(cutSuffix)] + cutSuffix
}

// SanitizeMessage strips invalid UTF-8 and truncates long fault text so it
// can be stored in status/progress columns safely.
func SanitizeMessage(input string, cut int) string {
	sanitized := strings.ToValidUTF8(input, "")
	sanitized = CutString(sanitized, cut)
	// Re-sanitize after CutString to prevent invalid UTF-8 from byte-level truncation
	return strings.ToValidUTF8(sanitized, "")
}

func CreateCloneDir(repoName string) (string, error) {
	if repoName == "" {
		return "", errors.New("invalid value: repoName is not empty")
	}

	dir, err := os.MkdirTemp("", repoName)
	if err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	return dir, nil
}
