package metadata

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// normalizeText trims surrounding whitespace and composes the string to NFC,
// so names stored decomposed by other tools compare equal. Case is preserved.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// collapseNewlines replaces every run of line breaks with a single space.
func collapseNewlines(s string) string {
	s = newlineReplacer.Replace(s)
	if !strings.Contains(s, "\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inBreak := false
	for _, r := range s {
		if r == '\n' {
			if !inBreak {
				b.WriteByte(' ')
				inBreak = true
			}
			continue
		}
		inBreak = false
		b.WriteRune(r)
	}
	return b.String()
}

// truncateRunes cuts s to at most maxLen characters.
func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i]
		}
		n++
	}
	return s
}

// IPTC datasets have byte limits. Longer values are cut by exiftool on write,
// so they are cut here first to keep the written and compared values equal.
const (
	IPTCCaptionMaxBytes = 2000
	IPTCKeywordMaxBytes = 64
)

// truncateBytes cuts s to at most maxBytes bytes without splitting a
// UTF-8 sequence.
func truncateBytes(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// iptcKeywords cuts each name to the keyword limit and drops the duplicates
// that cutting can produce.
func iptcKeywords(names []string) []string {
	cut := make([]string, len(names))
	for i, n := range names {
		cut[i] = truncateBytes(n, IPTCKeywordMaxBytes)
	}
	return uniqueNames(cut)
}

// uniqueNames returns the non-empty, NFC-normalized names in order of first occurrence.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = normalizeText(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
