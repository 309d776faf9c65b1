package domain

import "strings"

// GTINLength is the width of a canonical GTIN code
const GTINLength = 13

// NormalizeGTIN canonicalizes a raw identifier to a 13-digit code.
//
// Every character that is not an ASCII digit is discarded and the remaining
// digits are left-padded with '0'. It reports false when no digits remain.
// Longer inputs lose their leading zeros; if more than 13 significant digits
// are left the identifier is rejected. No checksum is verified.
func NormalizeGTIN(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}

	digits := b.String()
	if digits == "" {
		return "", false
	}
	if len(digits) > GTINLength {
		digits = strings.TrimLeft(digits, "0")
		if len(digits) > GTINLength {
			return "", false
		}
	}
	return strings.Repeat("0", GTINLength-len(digits)) + digits, true
}

// NormalizeGTINPtr is NormalizeGTIN over an optional value; nil means absent
func NormalizeGTINPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	code, ok := NormalizeGTIN(*raw)
	if !ok {
		return nil
	}
	return &code
}
