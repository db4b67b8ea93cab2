package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/matterbridge/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/avaraline/iridium/commands"
)

// The router turns one inbound Discord event into zero or more IRC
// lines, deciding who sees it, in what form, and which echoes to
// suppress. Runs on the server loop.
type router struct {
	bridge *Bridge
	echo   EchoSuppressor

	// resolve fetches a referenced message, or nil when it cannot be
	// found. Swappable for tests.
	resolve func(ref *discordgo.MessageReference) *discordgo.Message
}

func newRouter(b *Bridge) *router {
	r := &router{bridge: b}
	r.resolve = r.resolveMessage
	return r
}

var customEmoji = regexp.MustCompile(`<(a?):\w+:(\d+)>`)

// rewriteEmoji replaces inline custom emoji markup with a direct image
// URL. Plain unicode passes through untouched.
func rewriteEmoji(s string) string {
	return customEmoji.ReplaceAllStringFunc(s, func(m string) string {
		parts := customEmoji.FindStringSubmatch(m)
		ext := ".png"
		if parts[1] == "a" {
			ext = ".gif"
		}
		return "https://cdn.discordapp.com/emojis/" + parts[2] + ext
	})
}

// humanSize renders a byte count with binary units. Whole bytes get no
// decimal place, everything else gets one.
func humanSize(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	size := float64(n)
	units := []string{"KB", "MB", "GB", "TB"}
	for i, unit := range units {
		size /= 1024
		if size < 1024 || i == len(units)-1 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
	}
	return ""
}

// handleMessage relays one Discord message, or dispatches it as a bang
// command. edited marks messages arriving through an update event.
func (r *router) handleMessage(m *discordgo.Message, edited bool) {
	ch := r.bridge.server.channelByID(m.ChannelID)
	if ch == nil || m.Author == nil {
		return
	}
	// Our own relayed lines come back as webhook messages.
	if r.bridge.relay.Has(m.WebhookID) {
		return
	}
	if me := r.bridge.discord.State.User; me != nil && m.Author.ID == me.ID {
		return
	}

	content := m.ContentWithMentionsReplaced()

	if !edited && r.dispatchCommand(m, content) {
		return
	}

	sender := r.memberFor(m.Author, m.Member)
	for _, line := range r.render(m, content, edited) {
		ch.message(line, sender)
	}
	r.echo.Push(m.ID, sender.Nick())
}

// render produces the outbound lines for one message: an optional
// quote of the replied-to original, the body split per line, then one
// line per attachment.
func (r *router) render(m *discordgo.Message, content string, edited bool) []string {
	var out []string

	if ref := m.MessageReference; ref != nil && !r.echo.Contains(ref.MessageID) {
		if original := r.resolve(ref); original != nil {
			out = append(out, r.quote(original))
		}
	}

	body := rewriteEmoji(content)
	if edited {
		body = "(edited) " + body
	}
	for _, line := range strings.Split(body, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}

	for _, a := range m.Attachments {
		out = append(out, fmt.Sprintf("%s (%s - %s)", a.URL, a.Filename, humanSize(a.Size)))
	}
	return out
}

// quote formats the first line of a referenced original message.
func (r *router) quote(original *discordgo.Message) string {
	body := original.Content
	truncated := false
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[:i]
		truncated = true
	}

	name := "unknown"
	if original.Author != nil {
		name = original.Author.Username
	}
	if original.Member != nil && original.Member.Nick != "" {
		name = original.Member.Nick
	}

	line := fmt.Sprintf("<%s> %s", name, rewriteEmoji(body))
	if truncated {
		line += "[...]"
	}
	return line
}

// handleEdit relays an edit as a fresh marked message, but only when
// the visible text actually changed. Embed unfurls arrive as updates
// with identical content and stay silent.
func (r *router) handleEdit(m *discordgo.MessageUpdate) {
	if m.Content == "" {
		return
	}
	if m.BeforeUpdate != nil && m.BeforeUpdate.Content == m.Content {
		return
	}
	r.handleMessage(m.Message, true)
}

// handleReaction renders a reaction as a synthetic one-line message
// from the reactor, quoting the reacted-to message unless it was just
// relayed.
func (r *router) handleReaction(mr *discordgo.MessageReaction) {
	ch := r.bridge.server.channelByID(mr.ChannelID)
	if ch == nil {
		return
	}

	member, err := r.bridge.discord.State.Member(r.bridge.Config.GuildID, mr.UserID)
	if err != nil {
		log.WithError(err).WithField("user", mr.UserID).Debugln("reactor not in state")
		return
	}
	sender := newRemoteMember(member)

	content := mr.Emoji.Name
	if mr.Emoji.ID != "" {
		ext := ".png"
		if mr.Emoji.Animated {
			ext = ".gif"
		}
		content = "https://cdn.discordapp.com/emojis/" + mr.Emoji.ID + ext
	}

	if !r.echo.Contains(mr.MessageID) {
		ref := &discordgo.MessageReference{
			GuildID:   mr.GuildID,
			ChannelID: mr.ChannelID,
			MessageID: mr.MessageID,
		}
		if original := r.resolve(ref); original != nil {
			ch.message(r.quote(original), sender)
		}
	}
	ch.message("reacted with "+content, sender)
	r.echo.Push(mr.MessageID, sender.Nick())
}

// dispatchCommand checks for the trigger character and hands the
// message to a registered handler. Unknown verbs are not an error;
// they relay as ordinary chat. Handler failures, including panics, are
// swallowed with a diagnostic.
func (r *router) dispatchCommand(m *discordgo.Message, content string) bool {
	trigger := r.bridge.Config.Trigger
	if trigger == "" || !strings.HasPrefix(content, trigger) {
		return false
	}

	verb, args, err := commands.Split(strings.TrimPrefix(content, trigger))
	if err != nil || verb == "" {
		return false
	}
	handler, ok := commands.Table[strings.ToLower(verb)]
	if !ok {
		return false
	}

	req := &commands.Request{
		Session: r.bridge.discord,
		Message: m,
		Args:    args,
		Options: r.bridge.Config.Commands[strings.ToLower(verb)],
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.WithFields(log.Fields{
					"command": verb,
					"panic":   p,
				}).Errorln("command handler panicked")
			}
		}()
		if err := handler(context.Background(), req); err != nil {
			log.WithError(err).WithField("command", verb).Warnln("command handler failed")
		}
	}()
	return true
}

// memberFor builds the per-event sender proxy. Message events do not
// always carry the member, so fall back to state, then to the bare
// user.
func (r *router) memberFor(user *discordgo.User, member *discordgo.Member) *RemoteMember {
	if member != nil {
		if member.User == nil {
			member = &discordgo.Member{Nick: member.Nick, User: user}
		}
		return newRemoteMember(member)
	}
	if m, err := r.bridge.discord.State.Member(r.bridge.Config.GuildID, user.ID); err == nil {
		return newRemoteMember(m)
	}
	return newRemoteMember(&discordgo.Member{User: user})
}

func (r *router) resolveMessage(ref *discordgo.MessageReference) *discordgo.Message {
	if ref.MessageID == "" {
		return nil
	}
	if msg, err := r.bridge.discord.State.Message(ref.ChannelID, ref.MessageID); err == nil {
		return msg
	}
	msg, err := r.bridge.discord.ChannelMessage(ref.ChannelID, ref.MessageID)
	if err != nil {
		log.WithError(err).WithField("message", ref.MessageID).Debugln("could not resolve referenced message")
		return nil
	}
	return msg
}
