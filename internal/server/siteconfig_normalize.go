package server

import (
	"strings"
	"unicode"
)

// normalizeSiteConfigUpdate rewrites the small fixed set of fields that need
// canonicalization before validation and dispatch. Idempotent: running it on
// already-normalized data yields the same values.
func normalizeSiteConfigUpdate(u *siteConfigUpdate) {
	for i := range u.fields {
		f := &u.fields[i]
		switch f.Schema.Key {
		case fieldSidebarTags, fieldSuggestedUsers:
			for j, entry := range f.List {
				f.List[j] = foldListToken(entry)
			}
		case fieldCreditPrices:
			m := make(map[string]int, len(f.RawMap))
			for k, v := range f.RawMap {
				m[k] = coerceCents(v)
			}
			f.IntMap = m
		}
	}
}

// foldListToken lowercases and removes every whitespace character, internal
// ones included; tag and username tokens never contain spaces.
func foldListToken(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// coerceCents converts a submitted price to integer cents. Semantics match
// the reference behavior: an optional sign and leading digits are read, and
// anything non-numeric coerces to zero rather than erroring.
func coerceCents(s string) int {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0
	}
	n := 0
	for _, c := range s[i:j] {
		n = n*10 + int(c-'0')
	}
	if s[0] == '-' {
		return -n
	}
	return n
}
