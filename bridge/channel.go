package bridge

import (
	"strings"

	"github.com/matterbridge/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/avaraline/iridium/ircf"
)

// ChannelOptions are the per-channel overrides from the configuration
// file. The zero value is what an automapped channel gets.
type ChannelOptions struct {
	Default bool   `mapstructure:"default"`
	Log     bool   `mapstructure:"log"`
	Webhook string `mapstructure:"webhook"`
}

// A Channel is the reconciliation unit: one chat room that exists, by
// name, on both networks. It owns the cached topic, the remote member
// roster, and the list of locally joined sessions. All methods run on
// the server loop.
type Channel struct {
	server *Server

	name      string // Discord-side name, no '#'
	ircName   string
	discordID string

	topic    string
	members  map[string]*RemoteMember // Discord user ID -> snapshot
	sessions []*Session

	webhookName string
	isDefault   bool
	isLogged    bool
}

func newChannel(s *Server, name string) *Channel {
	return &Channel{
		server:  s,
		name:    name,
		ircName: "#" + name,
		members: make(map[string]*RemoteMember),
	}
}

// configure (re)binds the channel's flags and relay identity, then
// converges topic and roster with the given remote snapshot.
func (c *Channel) configure(dc *discordgo.Channel, members []*discordgo.Member, opts ChannelOptions) {
	c.discordID = dc.ID
	c.isDefault = opts.Default
	c.isLogged = opts.Log

	c.webhookName = opts.Webhook
	if c.webhookName == "" {
		c.webhookName = "IRC"
	}
	if err := c.server.relay.Bind(dc.ID, c.webhookName); err != nil {
		log.WithError(err).WithField("channel", c.ircName).Errorln("could not bind relay identity")
	}

	c.sync(dc, members)
}

// sync diffs the cached remote roster and topic against the current
// remote snapshot. Members present now but not before produce a
// synthetic join, members gone produce a synthetic part, and the new
// roster replaces the old wholesale so missed intermediate events
// cannot accumulate drift.
func (c *Channel) sync(dc *discordgo.Channel, members []*discordgo.Member) {
	if dc.Topic != c.topic {
		c.topic = dc.Topic
		for _, s := range c.sessions {
			s.SendTopic(c)
		}
	}

	next := make(map[string]*RemoteMember, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		next[m.User.ID] = newRemoteMember(m)
	}

	for id, m := range next {
		if _, ok := c.members[id]; !ok {
			for _, s := range c.sessions {
				s.SendJoin(m, c)
			}
		}
	}
	for id, m := range c.members {
		if _, ok := next[id]; !ok {
			for _, s := range c.sessions {
				s.SendPart(m, c, "Leaving")
			}
		}
	}

	c.members = next
}

// join adds a session to the channel. Idempotent: joining twice is a
// no-op. The join is announced to everyone, including the joiner, so
// its client renders the room.
func (c *Channel) join(sess *Session) {
	for _, s := range c.sessions {
		if s == sess {
			return
		}
	}
	c.sessions = append(c.sessions, sess)
	for _, s := range c.sessions {
		s.SendJoin(sess, c)
	}
}

func (c *Channel) part(sess *Session, reason string) {
	c.remove(sess, false, reason)
}

// quit removes a session that is disconnecting; the broadcast carries
// the session's recorded quit reason.
func (c *Channel) quit(sess *Session, reason string) {
	c.remove(sess, true, reason)
}

func (c *Channel) remove(sess *Session, quitting bool, reason string) {
	idx := -1
	for i, s := range c.sessions {
		if s == sess {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	for _, s := range c.sessions {
		if quitting {
			s.SendQuit(sess, reason)
		} else {
			s.SendPart(sess, c, reason)
		}
	}
	c.sessions = append(c.sessions[:idx], c.sessions[idx+1:]...)
}

// message fans one line out to the local side and, when it originated
// locally, across to Discord through the bound relay identity. The
// sender is skipped by nickname, not object identity, because remote
// proxies are recreated per event.
func (c *Channel) message(content string, sender Participant) {
	if c.isLogged {
		log.WithFields(log.Fields{
			"channel": c.ircName,
			"nick":    sender.Nick(),
		}).Infoln(ircf.StripCodes(content))
	}

	for _, s := range c.sessions {
		if s.Nick() == sender.Nick() {
			continue
		}
		s.SendMessage(content, sender, c)
	}

	if sess, ok := sender.(*Session); ok {
		out := ircf.ToMarkdown(content)
		out = strings.ReplaceAll(out, "@everyone", "@​everyone")
		out = strings.ReplaceAll(out, "@here", "@​here")
		channelID, nick := c.discordID, sess.Nick()
		go func() {
			if err := c.server.relay.Send(channelID, nick, out); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"channel": channelID,
					"nick":    nick,
				}).Errorln("could not relay message to discord")
			}
		}()
	}
}

// clear decommissions the channel, forcing every occupant out.
func (c *Channel) clear() {
	for _, sess := range append([]*Session(nil), c.sessions...) {
		c.part(sess, "RIP")
	}
	c.sessions = nil
	c.members = make(map[string]*RemoteMember)
}

// participants lists remote members first, then local sessions.
func (c *Channel) participants() []Participant {
	out := make([]Participant, 0, len(c.members)+len(c.sessions))
	for _, m := range c.members {
		out = append(out, m)
	}
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

// userCount is what LIST reports: local sessions plus remote roster.
func (c *Channel) userCount() int {
	return len(c.sessions) + len(c.members)
}
