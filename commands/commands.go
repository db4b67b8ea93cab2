// Package commands implements the bang-command contract: a Discord
// message starting with the trigger character is tokenized with shell
// quoting rules and dispatched to a handler registered here. Handlers
// reply through the originating message; their failures are the
// caller's to swallow.
package commands

import (
	"context"

	"github.com/google/shlex"
	"github.com/matterbridge/discordgo"
)

// A Request carries one command invocation.
type Request struct {
	Session *discordgo.Session
	Message *discordgo.Message

	// Args are the tokens after the verb.
	Args []string

	// Options is the per-command table from the configuration file,
	// passed through verbatim.
	Options map[string]interface{}
}

// Reply sends text back to the channel the command came from,
// referencing the originating message.
func (r *Request) Reply(text string) error {
	_, err := r.Session.ChannelMessageSendReply(r.Message.ChannelID, text, r.Message.Reference())
	return err
}

// String returns the string option under key, or "" when unset.
func (r *Request) String(key string) string {
	s, _ := r.Options[key].(string)
	return s
}

// A HandlerFunc runs one command invocation.
type HandlerFunc func(ctx context.Context, req *Request) error

// Table maps the command verb to its handler. Resolved once at
// startup; verbs not present here fall through to ordinary chat.
var Table = map[string]HandlerFunc{
	"weather": Weather,
	"issue":   Issue,
	"calc":    Calc,
}

// Split tokenizes a command body (trigger already stripped) into a
// verb and its arguments, honoring shell-style quoting.
func Split(body string) (verb string, args []string, err error) {
	words, err := shlex.Split(body)
	if err != nil || len(words) == 0 {
		return "", nil, err
	}
	return words[0], words[1:], nil
}
