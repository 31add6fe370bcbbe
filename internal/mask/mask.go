// Package mask hides client names on shared screens.
package mask

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maskRune = "〇"

// honorifics are kept verbatim after the masked name.
var honorifics = []string{"様", "さん", "君", "ちゃん"}

// Name keeps the first character of each space-separated part of name and
// replaces the rest with 〇. Half- and full-width spaces both separate parts,
// and a trailing honorific is kept: "山田 太郎様" becomes "山〇 太〇 様".
func Name(name string) string {
	if name == "" {
		return ""
	}

	suffix := ""
	main := name
	for _, h := range honorifics {
		if strings.HasSuffix(name, h) {
			suffix = " " + h
			main = strings.TrimSpace(strings.TrimSuffix(name, h))
			break
		}
	}

	parts := strings.FieldsFunc(main, unicode.IsSpace)
	for i, p := range parts {
		n := utf8.RuneCountInString(p)
		if n <= 1 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(p)
		parts[i] = string(first) + strings.Repeat(maskRune, n-1)
	}
	return strings.Join(parts, " ") + suffix
}
