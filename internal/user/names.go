package user

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes a person's name for comparison: whitespace is
// collapsed and the text is put in Unicode NFC form, so names copied from
// chat and names scraped from the portal compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}
