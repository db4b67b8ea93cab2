package bridge

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	log "github.com/sirupsen/logrus"

	"github.com/avaraline/iridium/irc"
)

const (
	writeTimeout  = 10 * time.Second
	outboundQueue = 64
)

// A Session is one accepted IRC client connection. The reader
// goroutine only frames and parses, the writer goroutine only drains
// the outbound queue; every state mutation happens on the server
// loop, so Session fields need no locking.
type Session struct {
	server *Server
	conn   net.Conn

	out    chan []byte
	closed chan struct{}

	nickname      string
	username      string
	realname      string
	hostname      string
	password      string
	authenticated bool
	quitReason    string
}

// verbs is the static dispatch table, built once. Unregistered verbs
// fall through to the unknown-command reply.
var verbs = map[string]func(*Session, ircmsg.Message){
	"PING":    (*Session).handlePing,
	"PONG":    (*Session).handlePong,
	"PASS":    (*Session).handlePass,
	"USER":    (*Session).handleUser,
	"NICK":    (*Session).handleNick,
	"JOIN":    (*Session).handleJoin,
	"PART":    (*Session).handlePart,
	"PRIVMSG": (*Session).handlePrivmsg,
	"MODE":    (*Session).handleMode,
	"WHO":     (*Session).handleWho,
	"LIST":    (*Session).handleList,
	"QUIT":    (*Session).handleQuit,
}

func newSession(server *Server, conn net.Conn) *Session {
	hostname := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(hostname); err == nil {
		hostname = host
	}
	return &Session{
		server:   server,
		conn:     conn,
		hostname: hostname,
		out:      make(chan []byte, outboundQueue),
		closed:   make(chan struct{}),
	}
}

// readLoop frames the raw byte stream into commands and hands them to
// the server loop, preserving per-connection order. Runs in its own
// goroutine; exits when the transport closes.
func (s *Session) readLoop() {
	defer func() {
		close(s.closed)
		select {
		case s.server.disconnected <- s:
		case <-s.server.done:
		}
	}()

	var lb irc.LineBuffer
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			for _, line := range lb.Feed(buf[:n]) {
				msg, ok := irc.Parse(line)
				if !ok {
					continue
				}
				select {
				case s.server.lines <- sessionLine{session: s, msg: msg}:
				case <-s.server.done:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) dispatch(msg ircmsg.Message) {
	handler, ok := verbs[msg.Command]
	if !ok {
		s.reply(irc.ErrUnknownCommand, s.target(), msg.Command, "Unknown command")
		log.WithFields(log.Fields{
			"command": msg.Command,
			"params":  msg.Params,
		}).Debugln("unknown IRC command")
		return
	}
	handler(s, msg)
}

// target is the client name used in numeric replies before a nickname
// is known.
func (s *Session) target() string {
	if s.nickname == "" {
		return "*"
	}
	return s.nickname
}

// reply writes a line with the server as prefix.
func (s *Session) reply(command string, params ...string) {
	s.write(s.server.name, command, params...)
}

// write serializes one line and queues it for the writer goroutine,
// so a stalled client never blocks the server loop. A session whose
// queue is full has stopped reading and gets cut off instead. Writes
// to a closed transport are no-ops.
func (s *Session) write(prefix, command string, params ...string) {
	msg := ircmsg.MakeMessage(nil, prefix, command, params...)
	line, err := msg.LineBytes()
	if err != nil {
		log.WithError(err).WithField("command", command).Debugln("could not serialize line")
		return
	}
	select {
	case s.out <- line:
	default:
		log.WithField("session", s.String()).Warnln("outbound queue full, dropping client")
		s.conn.Close()
	}
}

// writeLoop drains the outbound queue onto the transport. A nil entry
// marks an orderly shutdown: everything queued before it has been
// flushed, so the transport closes there.
func (s *Session) writeLoop() {
	for {
		select {
		case line := <-s.out:
			if line == nil {
				s.conn.Close()
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := s.conn.Write(line); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

// close flushes queued lines, then closes the transport.
func (s *Session) close() {
	select {
	case s.out <- nil:
	default:
		s.conn.Close()
	}
}

func (s *Session) String() string { return userPrefix(s) }

// Participant

func (s *Session) Nick() string     { return s.nickname }
func (s *Session) Username() string { return s.username }
func (s *Session) Hostname() string { return s.hostname }
func (s *Session) Realname() string { return s.realname }

func (s *Session) SendJoin(who Participant, ch *Channel) {
	s.write(userPrefix(who), "JOIN", ch.ircName)
}

func (s *Session) SendPart(who Participant, ch *Channel, reason string) {
	if reason == "" {
		s.write(userPrefix(who), "PART", ch.ircName)
		return
	}
	s.write(userPrefix(who), "PART", ch.ircName, reason)
}

func (s *Session) SendQuit(who Participant, reason string) {
	s.write(userPrefix(who), "QUIT", reason)
}

func (s *Session) SendTopic(ch *Channel) {
	s.write(s.server.name, "TOPIC", ch.ircName, ch.topic)
}

func (s *Session) SendMessage(content string, from Participant, ch *Channel) {
	if ch != nil {
		s.write(userPrefix(from), "PRIVMSG", ch.ircName, content)
		return
	}
	s.write(from.Nick(), "PRIVMSG", s.nickname, content)
}

// Verb handlers.

func (s *Session) handlePing(msg ircmsg.Message) {
	s.reply("PONG", s.server.name, strings.Join(msg.Params, " "))
}

func (s *Session) handlePong(msg ircmsg.Message) {}

func (s *Session) handlePass(msg ircmsg.Message) {
	if len(msg.Params) > 0 {
		s.password = msg.Params[0]
	}
	s.checkLogin()
}

func (s *Session) handleUser(msg ircmsg.Message) {
	if len(msg.Params) < 4 {
		return
	}
	s.username = msg.Params[0]
	s.realname = msg.Params[3]
	s.checkLogin()
}

func (s *Session) handleNick(msg ircmsg.Message) {
	if len(msg.Params) == 0 || msg.Params[0] == s.nickname {
		return
	}
	nick := msg.Params[0]
	if !s.server.validNick(nick) {
		s.reply(irc.ErrNicknameInUse, "*", "Nickname is already in use.")
		return
	}

	oldPrefix := userPrefix(s)
	wasAuthenticated := s.authenticated
	s.nickname = nick

	if wasAuthenticated {
		for _, other := range s.server.sessions {
			if other.authenticated {
				other.write(oldPrefix, "NICK", nick)
			}
		}
		return
	}
	s.checkLogin()
}

// checkLogin attempts authentication. It is re-run on every
// login-relevant command until it succeeds or the connection closes.
func (s *Session) checkLogin() {
	if s.authenticated || s.username == "" || s.nickname == "" {
		return
	}
	if s.server.password != "" && s.server.password != s.password {
		s.reply("NOTICE", "AUTH", "*** You are not logged in, please use PASS to authenticate")
		return
	}
	s.authenticated = true

	welcome := fmt.Sprintf("Welcome to %s!", s.server.name)
	if def := s.server.defaultChannel(); def != nil {
		welcome = fmt.Sprintf("Welcome to %s! The public chat room for this server is %s",
			s.server.name, def.ircName)
	}
	s.reply(irc.RplWelcome, s.nickname, welcome)
}

func (s *Session) handleJoin(msg ircmsg.Message) {
	if len(msg.Params) == 0 {
		return
	}
	for _, name := range strings.Split(msg.Params[0], ",") {
		ch := s.server.channel(strings.TrimPrefix(name, "#"))
		if ch == nil {
			s.reply(irc.ErrNoSuchChannel, name, "No such channel")
			continue
		}
		ch.join(s)
		if ch.topic != "" {
			s.reply(irc.RplTopic, s.nickname, ch.ircName, ch.topic)
		} else {
			s.reply(irc.RplNoTopic, s.nickname, ch.ircName, "No topic is set")
		}

		nicks := make([]string, 0, ch.userCount())
		for _, p := range ch.participants() {
			nicks = append(nicks, p.Nick())
		}
		s.reply(irc.RplNamReply, s.nickname, "=", ch.ircName, strings.Join(nicks, " "))
		s.reply(irc.RplEndOfNames, s.nickname, ch.ircName, "End of NAMES list")
	}
}

func (s *Session) handlePart(msg ircmsg.Message) {
	if len(msg.Params) == 0 {
		return
	}
	reason := ""
	if len(msg.Params) > 1 {
		reason = msg.Params[1]
	}
	for _, name := range strings.Split(msg.Params[0], ",") {
		if ch := s.server.channel(strings.TrimPrefix(name, "#")); ch != nil {
			ch.part(s, reason)
		}
	}
}

func (s *Session) handlePrivmsg(msg ircmsg.Message) {
	if len(msg.Params) < 2 {
		return
	}
	target, text := msg.Params[0], msg.Params[1]

	if strings.HasPrefix(target, "#") {
		if ch := s.server.channel(target[1:]); ch != nil {
			ch.message(text, s)
		}
		return
	}
	if user := s.server.user(target); user != nil {
		user.SendMessage(text, s, nil)
	}
}

// handleMode accepts and ignores mode changes. The bridge has no
// channel or user modes.
func (s *Session) handleMode(msg ircmsg.Message) {}

func (s *Session) handleWho(msg ircmsg.Message) {
	if len(msg.Params) == 0 || !strings.HasPrefix(msg.Params[0], "#") {
		return
	}
	ch := s.server.channel(msg.Params[0][1:])
	if ch == nil {
		return
	}
	for _, p := range ch.participants() {
		s.reply(irc.RplWhoReply, s.nickname, ch.ircName,
			p.Username(), p.Hostname(), s.server.name, p.Nick(), "H", "0 "+p.Realname())
	}
	s.reply(irc.RplEndOfWho, s.nickname, ch.ircName, "End of WHO list")
}

func (s *Session) handleList(msg ircmsg.Message) {
	s.reply(irc.RplListStart, s.target(), "Channel", "Users  Name")

	names := make([]string, 0, len(s.server.channels))
	for name := range s.server.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ch := s.server.channels[name]
		s.reply(irc.RplList, s.target(), ch.ircName, strconv.Itoa(ch.userCount()), ch.topic)
	}
	s.reply(irc.RplListEnd, s.target(), "End of LIST")
}

func (s *Session) handleQuit(msg ircmsg.Message) {
	s.quitReason = "Quit"
	if len(msg.Params) > 0 && msg.Params[0] != "" {
		s.quitReason = msg.Params[0]
	}
	s.write(s.server.name, "ERROR", "Bye for now!")
	s.close()
}
