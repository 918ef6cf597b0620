// Package tokenizer splits source-code identifiers into lowercase subwords
// for full-text indexing. It is a pure, deterministic function with no
// dependency on the storage or extraction layers.
package tokenizer

import "strings"

// Split splits name into lowercase subword tokens, following the same rules
// across camelCase, PascalCase, snake_case, SCREAMING_SNAKE_CASE, and
// acronym boundaries (HTMLParser -> html, parser). Digits never start a new
// split. The final token is always the fully lowercased, non-alphanumeric-
// stripped original name, appended unless it is already present, so that
// exact-name search still matches.
//
// Duplicates are removed, preserving first appearance.
func Split(name string) string {
	if name == "" {
		return ""
	}

	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !isAlnum(r) {
			flush()
			continue
		}

		if len(cur) > 0 && isUpper(r) {
			prev := cur[len(cur)-1]
			prevLower := isLower(prev)
			nextLower := i+1 < len(runes) && isLower(runes[i+1])
			// camelCase: split before an upper that follows a lower (getUser -> get, User).
			// Acronym end: split before an upper that precedes a lower (HTMLParser -> HTML, Parser).
			if prevLower || nextLower {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	seen := make(map[string]struct{}, len(words)+1)
	var tokens []string
	for _, w := range words {
		lw := strings.ToLower(w)
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		tokens = append(tokens, lw)
	}

	joined := strings.Join(tokens, " ")

	original := strings.ToLower(stripNonAlnum(name))
	if original != "" {
		if _, ok := seen[original]; !ok && original != joined {
			if joined == "" {
				joined = original
			} else {
				joined = joined + " " + original
			}
		}
	}

	return joined
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
