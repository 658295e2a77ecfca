package validators

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SanitizeString trims surrounding whitespace and truncates to maxLen runes.
// maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	runes := 0
	for i := range trimmed {
		if runes == maxLen {
			return trimmed[:i]
		}
		runes++
	}
	return trimmed
}

// CleanIdentifier trims input and rejects it, rather than truncating, when it
// is blank or longer than maxLen runes. Identifiers take part in equality, so
// a shortened value would name something else.
func CleanIdentifier(input string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("is required")
	}
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("must be at most %d characters", maxLen)
	}
	return trimmed, nil
}
