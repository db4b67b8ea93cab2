package bridge

import (
	"fmt"
	"net"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/matterbridge/discordgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Relay is the outbound boundary to Discord: named webhook identities
// bound per channel. Satisfied by transmitter.Transmitter.
type Relay interface {
	Bind(channelID, name string) error
	Unbind(channelID string)
	Send(channelID, username, content string) error
	Has(webhookID string) bool
}

type sessionLine struct {
	session *Session
	msg     ircmsg.Message
}

// A Server is the registry: it owns every Session and Channel, resolves
// nicknames, and runs the single loop goroutine that all state
// mutations go through. Reader goroutines and Discord handlers never
// touch state directly; they post onto the loop's channels.
type Server struct {
	conf  *Config
	relay Relay

	// visible reports whether a guild member can see a channel. Nil
	// means everyone can; the bridge wires in Discord's permission
	// check so private-channel rosters stay private.
	visible func(userID, channelID string) bool

	name     string
	password string

	listener net.Listener
	sessions []*Session
	channels map[string]*Channel

	connected    chan *Session
	disconnected chan *Session
	lines        chan sessionLine
	remote       chan func()
	done         chan struct{}
}

func newServer(conf *Config, relay Relay) *Server {
	return &Server{
		conf:     conf,
		relay:    relay,
		name:     conf.ServerName,
		password: conf.Password,
		channels: make(map[string]*Channel),

		connected:    make(chan *Session),
		disconnected: make(chan *Session),
		lines:        make(chan sessionLine),
		remote:       make(chan func()),
		done:         make(chan struct{}),
	}
}

// run is the reactor. Everything that reads or writes registry,
// session, or channel state executes here, one event at a time.
func (s *Server) run() {
	for {
		select {
		case sess := <-s.connected:
			log.WithField("host", sess.hostname).Infoln("New connection")
			s.sessions = append(s.sessions, sess)

		case sess := <-s.disconnected:
			log.WithField("session", sess.String()).Infoln("Disconnected")
			reason := sess.quitReason
			if reason == "" {
				reason = "Connection closed"
			}
			for _, ch := range s.channels {
				ch.quit(sess, reason)
			}
			for i, other := range s.sessions {
				if other == sess {
					s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
					break
				}
			}

		case line := <-s.lines:
			line.session.dispatch(line.msg)

		case fn := <-s.remote:
			fn()

		case <-s.done:
			if s.listener != nil {
				s.listener.Close()
			}
			for _, sess := range s.sessions {
				sess.conn.Close()
			}
			return
		}
	}
}

// Do runs fn on the server loop. This is how Discord events and
// configuration reloads enter the single-threaded world.
func (s *Server) Do(fn func()) {
	select {
	case s.remote <- fn:
	case <-s.done:
	}
}

func (s *Server) stop() {
	close(s.done)
}

// listen opens the client endpoint. Called after the first successful
// topology pass so clients never see a channel-less server; subsequent
// calls are no-ops.
func (s *Server) listen() error {
	if s.listener != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.conf.Bind, s.conf.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "could not open listener")
	}
	s.listener = ln
	log.WithField("addr", addr).Infoln("Listening for IRC clients")
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		sess := newSession(s, conn)
		select {
		case s.connected <- sess:
		case <-s.done:
			conn.Close()
			return
		}
		go sess.readLoop()
		go sess.writeLoop()
	}
}

// validNick reports whether no live session and no remote member
// currently presents the given nick. Exact, case-sensitive match.
func (s *Server) validNick(nick string) bool {
	for _, sess := range s.sessions {
		if sess.nickname == nick {
			return false
		}
	}
	for _, ch := range s.channels {
		for _, m := range ch.members {
			if m.Nick() == nick {
				return false
			}
		}
	}
	return true
}

// user resolves a nickname to a live session, or nil.
func (s *Server) user(nick string) *Session {
	for _, sess := range s.sessions {
		if sess.nickname == nick {
			return sess
		}
	}
	return nil
}

// channel resolves a bridged channel by bare name (no '#'), or nil.
func (s *Server) channel(name string) *Channel {
	return s.channels[name]
}

func (s *Server) channelByID(discordID string) *Channel {
	for _, ch := range s.channels {
		if ch.discordID == discordID {
			return ch
		}
	}
	return nil
}

// defaultChannel is the channel flagged default, or failing that any
// bridged channel, or nil when the bridge is empty.
func (s *Server) defaultChannel() *Channel {
	var first *Channel
	for _, ch := range s.channels {
		if ch.isDefault {
			return ch
		}
		if first == nil {
			first = ch
		}
	}
	return first
}

// eligible decides whether a remote channel should be bridged: either
// an explicit configuration entry, or automapping minus the ignore
// globs.
func (s *Server) eligible(name string) (ChannelOptions, bool) {
	if opts, ok := s.conf.Channels[name]; ok {
		return opts, true
	}
	if !s.conf.Automap {
		return ChannelOptions{}, false
	}
	for _, g := range s.conf.IgnoreChannels {
		if g.Match(name) {
			return ChannelOptions{}, false
		}
	}
	return ChannelOptions{}, true
}

// applyTopology converges the bridged channel set with the remote
// guild: create what is newly eligible, reconfigure what persists,
// tear down what disappeared. The listener opens after the first pass.
func (s *Server) applyTopology(guild *discordgo.Guild) {
	seen := make(map[string]bool)
	for _, dc := range guild.Channels {
		if dc.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		opts, ok := s.eligible(dc.Name)
		if !ok {
			continue
		}
		seen[dc.Name] = true

		ch := s.channels[dc.Name]
		if ch == nil {
			ch = newChannel(s, dc.Name)
			s.channels[dc.Name] = ch
			log.WithField("channel", ch.ircName).Infoln("Bridging channel")
		}
		ch.configure(dc, s.visibleMembers(dc.ID, guild.Members), opts)
	}

	for name, ch := range s.channels {
		if seen[name] {
			continue
		}
		log.WithField("channel", ch.ircName).Infoln("Unbridging channel")
		ch.clear()
		s.relay.Unbind(ch.discordID)
		delete(s.channels, name)
	}

	if err := s.listen(); err != nil {
		log.WithError(err).Errorln("could not open client endpoint")
	}
}

// syncRosters re-diffs every bridged channel against the guild
// snapshot. Used for member-level events, which never change the
// channel set.
func (s *Server) syncRosters(guild *discordgo.Guild) {
	for _, dc := range guild.Channels {
		if ch := s.channelByID(dc.ID); ch != nil {
			ch.sync(dc, s.visibleMembers(dc.ID, guild.Members))
		}
	}
}

// visibleMembers narrows a guild member list to the members who can
// see the given channel.
func (s *Server) visibleMembers(channelID string, members []*discordgo.Member) []*discordgo.Member {
	if s.visible == nil {
		return members
	}
	out := make([]*discordgo.Member, 0, len(members))
	for _, m := range members {
		if m.User != nil && s.visible(m.User.ID, channelID) {
			out = append(out, m)
		}
	}
	return out
}
