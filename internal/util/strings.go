package util

import "strings"

// CleanIdentifier trims s and maps the placeholder spellings some feeds use
// for a missing value ("null", "None", "N/A") to the empty string.
func CleanIdentifier(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "n/a":
		return ""
	}
	return s
}
