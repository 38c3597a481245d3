package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a raw name for alias lookup: Unicode NFC, case
// folded, inner whitespace collapsed to single spaces, outer trimmed.
func Normalize(raw string) string {
	s := norm.NFC.String(raw)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// DisplayName tidies a raw name for use as a canonical display name without
// changing its case.
func DisplayName(raw string) string {
	return strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
}
