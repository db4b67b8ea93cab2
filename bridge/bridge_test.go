package bridge

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matterbridge/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/avaraline/iridium/irc"
)

// fakeRelay records outbound webhook sends instead of talking to
// Discord.
type fakeRelay struct {
	mu   sync.Mutex
	sent []relayed
}

type relayed struct {
	ChannelID string
	Username  string
	Content   string
}

func (f *fakeRelay) Bind(channelID, name string) error { return nil }
func (f *fakeRelay) Unbind(channelID string)           {}
func (f *fakeRelay) Has(webhookID string) bool         { return false }

func (f *fakeRelay) Send(channelID, username, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, relayed{channelID, username, content})
	return nil
}

func (f *fakeRelay) messages() []relayed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relayed(nil), f.sent...)
}

func newTestServer(t *testing.T) (*Server, *fakeRelay) {
	t.Helper()
	relay := &fakeRelay{}
	conf := &Config{
		ServerName: "iridium.test",
		Automap:    true,
		Channels:   map[string]ChannelOptions{},
	}
	s := newServer(conf, relay)
	go s.run()
	t.Cleanup(s.stop)
	return s, relay
}

// do runs fn on the server loop and waits for it.
func do(s *Server, fn func()) {
	done := make(chan struct{})
	s.Do(func() {
		fn()
		close(done)
	})
	<-done
}

// testClient is the far end of a session's pipe, collecting everything
// the server writes.
type testClient struct {
	conn net.Conn

	mu    sync.Mutex
	lines []string
}

func (c *testClient) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		c.mu.Lock()
		c.lines = append(c.lines, line)
		c.mu.Unlock()
	}
}

// waitLines returns once at least n lines arrived, or after a second.
func (c *testClient) waitLines(n int) []string {
	deadline := time.Now().Add(time.Second)
	for {
		c.mu.Lock()
		if len(c.lines) >= n || time.Now().After(deadline) {
			out := append([]string(nil), c.lines...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(t, err)
}

// connect attaches a fresh, unregistered session to the server, as if
// a client had just connected.
func connect(t *testing.T, s *Server) (*Session, *testClient) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	sess := newSession(s, serverConn)

	client := &testClient{conn: clientConn}
	go client.readLoop()
	go sess.readLoop()
	go sess.writeLoop()

	select {
	case s.connected <- sess:
	case <-time.After(time.Second):
		t.Fatal("server loop did not accept the session")
	}

	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	return sess, client
}

// login drives a session through registration.
func login(t *testing.T, s *Server, client *testClient, nick string) {
	t.Helper()
	client.send(t, "NICK "+nick)
	client.send(t, "USER "+nick+" 0 * :"+nick)
	lines := client.waitLines(1)
	require.NotEmpty(t, lines)
	require.Contains(t, lines[0], irc.RplWelcome)
}

// addChannel registers a bridged channel on the loop without going
// through a Discord topology pass.
func addChannel(t *testing.T, s *Server, name string) *Channel {
	t.Helper()
	ch := newChannel(s, name)
	ch.discordID = "id-" + name
	do(s, func() { s.channels[name] = ch })
	return ch
}

func member(id, nick string) *discordgo.Member {
	return &discordgo.Member{
		Nick: nick,
		User: &discordgo.User{ID: id, Username: nick},
	}
}
