package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// cjkPunctuation covers ASCII digits plus the punctuation that shows up in
// Chinese prose. ASCII punctuation and whitespace are deliberately absent.
var cjkPunctuation = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0030, Hi: 0x0039, Stride: 1}, // 0-9
		{Lo: 0x00b7, Hi: 0x00b7, Stride: 1}, // ·
		{Lo: 0x2014, Hi: 0x2014, Stride: 1}, // —
		{Lo: 0x2018, Hi: 0x2019, Stride: 1}, // ‘ ’
		{Lo: 0x201c, Hi: 0x201d, Stride: 1}, // “ ”
		{Lo: 0x2026, Hi: 0x2026, Stride: 1}, // …
		{Lo: 0x3001, Hi: 0x303f, Stride: 1}, // CJK symbols and punctuation, minus U+3000
		{Lo: 0xff01, Hi: 0xff20, Stride: 1}, // full-width punctuation and digits
		{Lo: 0xff3b, Hi: 0xff40, Stride: 1},
		{Lo: 0xff5b, Hi: 0xff65, Stride: 1},
	},
}

var replyAllowed = rangetable.Merge(unicode.Han, cjkPunctuation)

// FilterReply drops every rune outside Han ideographs, digits and CJK
// punctuation. Emoji, Latin text, whitespace and control characters vanish.
func FilterReply(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(replyAllowed, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
