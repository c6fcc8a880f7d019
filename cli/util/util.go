// Package util provides terminal helpers for the viteflow CLI.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// MaskToken masks a token for display, showing only first and last 4 characters
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// ReadPassword prints prompt to w and reads a secret from stdin without echoing
func ReadPassword(w io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(w, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}

// IsInteractive returns true if stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
