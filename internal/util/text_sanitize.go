package util

import "strings"

// SanitizeText strips the bytes that break downstream consumers of extracted
// page text: NUL and other non-printing controls that PDF content streams
// leak and that Postgres text columns reject. Ordinary whitespace survives.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	r := make([]rune, 0, len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			r = append(r, ch)
		case ch < 0x20 || ch == 0x7f:
			// dropped, including the NUL bytes some extractors emit
		default:
			r = append(r, ch)
		}
	}
	return strings.TrimSpace(string(r))
}
