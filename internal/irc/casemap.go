package irc

import "strings"

// Casemap folds a nick or channel name for comparison
type Casemap func(string) string

// CasemapASCII folds A-Z only
func CasemapASCII(s string) string {
	return foldRange(s, 'Z')
}

// CasemapRFC1459 additionally treats []\^ as the upper case of {}|~
func CasemapRFC1459(s string) string {
	return foldRange(s, '^')
}

// CasemapStrictRFC1459 is rfc1459 without the ^/~ pair
func CasemapStrictRFC1459(s string) string {
	return foldRange(s, ']')
}

func foldRange(s string, last byte) string {
	var b *strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= last {
			if b == nil {
				b = &strings.Builder{}
				b.Grow(len(s))
				b.WriteString(s[:i])
			}
			c += 'a' - 'A'
		}
		if b != nil {
			b.WriteByte(c)
		}
	}
	if b == nil {
		return s
	}
	return b.String()
}

// CasemapByName resolves a CASEMAPPING token. Unknown names fall back to
// rfc1459, which is what servers assume when they announce nothing.
func CasemapByName(name string) Casemap {
	switch strings.ToLower(name) {
	case "ascii":
		return CasemapASCII
	case "strict-rfc1459":
		return CasemapStrictRFC1459
	default:
		return CasemapRFC1459
	}
}

// NickOf returns the nick portion of a prefix, up to the first '!'
func NickOf(prefix string) string {
	if i := strings.IndexByte(prefix, '!'); i >= 0 {
		return prefix[:i]
	}
	return prefix
}

// SameNick compares two prefixes by their nick portion only. Nicks are
// unique on a network so user and host do not matter, and either side may
// be a bare nick.
func SameNick(a, b string, fold Casemap) bool {
	if fold == nil {
		fold = CasemapRFC1459
	}
	return fold(NickOf(a)) == fold(NickOf(b))
}
