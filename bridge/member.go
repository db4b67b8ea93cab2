package bridge

import (
	"fmt"

	"github.com/matterbridge/discordgo"

	"github.com/avaraline/iridium/ircnick"
)

// A Participant is anyone visible in a bridged channel: a connected
// IRC session or a projected Discord member. Channels and the router
// only ever talk to this interface.
type Participant interface {
	Nick() string
	Username() string
	Hostname() string
	Realname() string

	// Delivery callbacks. Remote members have no transport behind
	// them, so their implementations do nothing.
	SendJoin(who Participant, ch *Channel)
	SendPart(who Participant, ch *Channel, reason string)
	SendQuit(who Participant, reason string)
	SendTopic(ch *Channel)
	SendMessage(content string, from Participant, ch *Channel)
}

// userPrefix renders the nick!user@host form used as a message source.
func userPrefix(p Participant) string {
	return fmt.Sprintf("%s!%s@%s", p.Nick(), p.Username(), p.Hostname())
}

// A RemoteMember is a read-only projection of a Discord guild member
// into IRC identity fields. Snapshots are replaced wholesale on every
// roster sync, never mutated.
type RemoteMember struct {
	nick     string
	username string
	realname string
}

func newRemoteMember(m *discordgo.Member) *RemoteMember {
	display := m.Nick
	if display == "" && m.User != nil {
		display = m.User.Username
	}
	username := display
	if m.User != nil {
		username = m.User.Username
	}
	return &RemoteMember{
		nick:     ircnick.FromDisplayName(display),
		username: username,
		realname: display,
	}
}

func (m *RemoteMember) Nick() string     { return m.nick }
func (m *RemoteMember) Username() string { return m.username }
func (m *RemoteMember) Hostname() string { return "discord" }
func (m *RemoteMember) Realname() string { return m.realname }

func (m *RemoteMember) SendJoin(who Participant, ch *Channel)                {}
func (m *RemoteMember) SendPart(who Participant, ch *Channel, reason string) {}
func (m *RemoteMember) SendQuit(who Participant, reason string)              {}
func (m *RemoteMember) SendTopic(ch *Channel)                                {}
func (m *RemoteMember) SendMessage(content string, from Participant, ch *Channel) {
}
