// Package ircnick projects Discord display names onto nicks that an
// IRC client will accept.
package ircnick

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// isNickChar reports whether c may appear in a nick.
// Letters, digits and the specials from RFC 2812 grammar.
func isNickChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	case c == '[' || c == ']' || c == '\\' || c == '`' || c == '^' || c == '{' || c == '}' || c == '|':
		return true
	}
	return false
}

// FromDisplayName converts an arbitrary display name into a valid IRC
// nick: transliterate to ASCII, turn spaces into underscores, replace
// anything else invalid with an underscore, and never start with a
// digit or a dash.
func FromDisplayName(name string) string {
	name = unidecode.Unidecode(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return "_"
	}

	nick := []byte(name)
	for i, c := range nick {
		if !isNickChar(c) {
			nick[i] = '_'
		}
	}
	if c := nick[0]; c == '-' || (c >= '0' && c <= '9') {
		nick = append([]byte{'_'}, nick...)
	}
	return string(nick)
}
