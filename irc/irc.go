// Package irc contains the wire-level glue for the bridge's IRC side:
// splitting a raw byte stream into lines, decoding them, and parsing
// them into prefix/verb/params via ergochat's ircmsg.
package irc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircmsg"
	"golang.org/x/text/encoding/charmap"
)

// Numeric replies sent by the bridge. Names and values follow RFC 2812.
const (
	RplWelcome        = "001"
	RplEndOfWho       = "315"
	RplListStart      = "321"
	RplList           = "322"
	RplListEnd        = "323"
	RplNoTopic        = "331"
	RplTopic          = "332"
	RplWhoReply       = "352"
	RplNamReply       = "353"
	RplEndOfNames     = "366"
	ErrNoSuchChannel  = "403"
	ErrUnknownCommand = "421"
	ErrNicknameInUse  = "433"
)

var crlf = []byte("\r\n")

// maxLineLength bounds the buffer: anything longer without a
// terminator is a runaway line, not a command.
const maxLineLength = 4096

// A LineBuffer accumulates raw bytes from a connection and yields
// complete CR LF terminated lines. Partial trailing fragments stay
// buffered until the next Feed; runaway lines are dropped wholesale
// and framing resumes at the next terminator.
type LineBuffer struct {
	buf      []byte
	skipping bool
}

// Feed appends p to the buffer and returns every complete line now
// available, already decoded to a string.
func (lb *LineBuffer) Feed(p []byte) []string {
	lb.buf = append(lb.buf, p...)
	var lines []string
	for {
		i := bytes.Index(lb.buf, crlf)
		if i < 0 {
			if len(lb.buf) > maxLineLength {
				lb.buf = lb.buf[:0]
				lb.skipping = true
			}
			return lines
		}
		line := lb.buf[:i]
		lb.buf = lb.buf[i+2:]
		switch {
		case lb.skipping:
			lb.skipping = false
		case len(line) > maxLineLength:
		default:
			lines = append(lines, decode(line))
		}
	}
}

// decode interprets a raw line as UTF-8, falling back to Latin-1 for
// clients that still send legacy encodings. It never fails; Latin-1
// accepts any byte sequence.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}

// Parse turns one raw line into an IRC message with an upper-cased
// command. Lines with no verb report ok == false and are to be
// discarded silently.
func Parse(line string) (msg ircmsg.Message, ok bool) {
	msg, err := ircmsg.ParseLine(line)
	if err != nil || msg.Command == "" {
		return msg, false
	}
	msg.Command = strings.ToUpper(msg.Command)
	return msg, true
}
