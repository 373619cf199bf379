package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// windowsReserved lists device names that cannot be used as file stems on Windows shares.
var windowsReserved = map[string]struct{}{
	"con": {}, "aux": {}, "prn": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// SanitizeFileName converts a client-supplied filename into a single safe
// path segment. Characters are decomposed (NFKD) and combining marks dropped
// so "café.jpg" becomes "cafe.jpg". Path separators and whitespace become
// underscores, anything outside [A-Za-z0-9._-] is removed, and leading dots
// are stripped. Returns "" when nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = norm.NFKD.String(name)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'):
			b.WriteRune(r)
		default:
			continue
		}
		lastUnderscore = r == '_'
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return ""
	}
	stem := strings.TrimSuffix(out, filepath.Ext(out))
	if _, reserved := windowsReserved[strings.ToLower(stem)]; reserved {
		out = "_" + out
	}
	return out
}

// Extension returns the lowercase extension of name without the leading dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
