package identitysvc

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail returns the comparison form of an email address: trimmed,
// NFKC-normalized and case-folded. Stored emails keep their original spelling.
func NormalizeEmail(email string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(email)))
}

// localPart returns the part of an email address before the last '@'.
func localPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}

	return email
}
