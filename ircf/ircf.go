// Package ircf converts mIRC-style formatting codes into Discord
// markdown so that styled IRC messages survive the relay.
package ircf

import "strings"

// Formatting control characters.
const (
	charBold      = 0x02
	charColor     = 0x03
	charReset     = 0x0f
	charReverse   = 0x16
	charItalics   = 0x1d
	charUnderline = 0x1f
)

// A span is a run of text sharing one set of styles. Reverse video has
// no markdown equivalent and renders as italics, colors are dropped.
type span struct {
	text      string
	bold      bool
	italic    bool
	underline bool
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// skipColor consumes a color spec ("NN" or "NN,NN", each side at most
// two digits) starting at i, returning the index after it.
func skipColor(s string, i int) int {
	for n := 0; n < 2 && i < len(s) && isDigit(s[i]); n++ {
		i++
	}
	if i+1 < len(s) && s[i] == ',' && isDigit(s[i+1]) {
		i++
		for n := 0; n < 2 && i < len(s) && isDigit(s[i]); n++ {
			i++
		}
	}
	return i
}

func parse(s string) []span {
	var spans []span
	cur := span{}
	flush := func() {
		if cur.text != "" {
			spans = append(spans, cur)
			cur.text = ""
		}
	}

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case charBold:
			flush()
			cur.bold = !cur.bold
		case charItalics, charReverse:
			flush()
			cur.italic = !cur.italic
		case charUnderline:
			flush()
			cur.underline = !cur.underline
		case charColor:
			flush()
			i = skipColor(s, i+1) - 1
		case charReset:
			flush()
			cur = span{}
		default:
			cur.text += string(s[i])
		}
	}
	flush()
	return spans
}

// StripCodes removes every formatting code, leaving plain text.
func StripCodes(s string) string {
	var b strings.Builder
	for _, sp := range parse(s) {
		b.WriteString(sp.text)
	}
	return b.String()
}

type marker struct {
	code string
	has  func(span) bool
}

// Canonical open order.
var markers = []marker{
	{"**", func(sp span) bool { return sp.bold }},
	{"*", func(sp span) bool { return sp.italic }},
	{"__", func(sp span) bool { return sp.underline }},
}

// ToMarkdown rewrites formatting codes as Discord markdown. Open
// markers form a stack: when a style drops out mid-span, everything
// opened above it closes with it and the still-active markers reopen,
// so the output nests even when the input toggles overlap.
func ToMarkdown(s string) string {
	var b strings.Builder
	var open []marker
	for _, sp := range parse(s) {
		keep := len(open)
		for i, m := range open {
			if !m.has(sp) {
				keep = i
				break
			}
		}
		for i := len(open) - 1; i >= keep; i-- {
			b.WriteString(open[i].code)
		}
		open = open[:keep]

		for _, m := range markers {
			if !m.has(sp) {
				continue
			}
			seen := false
			for _, o := range open {
				if o.code == m.code {
					seen = true
					break
				}
			}
			if !seen {
				b.WriteString(m.code)
				open = append(open, m)
			}
		}
		b.WriteString(sp.text)
	}
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString(open[i].code)
	}
	return b.String()
}
