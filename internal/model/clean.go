package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText NFC-normalizes s, then trims and collapses interior whitespace
// runs to a single space, so visually-identical text scraped through
// different code paths canonicalizes to the same bytes.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
