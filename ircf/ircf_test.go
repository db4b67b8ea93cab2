package ircf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodes(t *testing.T) {
	msg := "Hello, \x02Wor\x1dld\x0304,07\x1d! \x1dMy name is\x1d\x0f... \x1fFirst\x1f Last."
	assert.Equal(t, "Hello, World! My name is... First Last.", StripCodes(msg))
}

func TestToMarkdown(t *testing.T) {
	cases := []struct {
		Name     string
		Input    string
		Expected string
	}{
		{"plain", "text", "text"},
		{"bold", "\x02text\x02", "**text**"},
		{"italics", "\x1dtext\x1d", "*text*"},
		{"reverse", "\x16text\x16", "*text*"},
		{"underline", "\x1ftext\x1f", "__text__"},
		{"color stripped", "\x0306,08text\x03", "text"},
		{"bold with nested italics", "\x02bold \x16italics\x16\x02", "**bold *italics***"},
		{"bold with nested underline", "\x02bold \x1funderline\x1f\x02", "**bold __underline__**"},
		{"reset clears styles", "\x02\x1fboth\x0fplain", "**__both__**plain"},
		{"interleaved toggles nest", "\x02a\x1fb\x02c\x1f", "**a__b__**__c__"},
		{"unterminated bold", "\x02rest of line", "**rest of line**"},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expected, ToMarkdown(c.Input))
		})
	}
}
