// Package slug turns free-form company names into board identifiers.
package slug

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
)

// Candidates returns the ordered, deduplicated board identifiers to try for
// name: trimmed, lowercased, hyphenated, squashed. Empty forms are dropped.
// A name without a single letter or digit yields no candidates at all.
func Candidates(name string) []string {
	if !strings.ContainsFunc(name, isAlnum) {
		return nil
	}

	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	hyphenated := strings.Trim(nonAlnumRun.ReplaceAllString(lower, "-"), "-")
	squashed := nonAlnum.ReplaceAllString(lower, "")

	seen := make(map[string]struct{}, 4)
	out := make([]string, 0, 4)
	for _, c := range []string{trimmed, lower, hyphenated, squashed} {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Normalize produces the display/log form of a company name: only letters,
// digits and single spaces, lowercased.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case isAlnum(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
