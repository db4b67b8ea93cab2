package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/matterbridge/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaraline/iridium/commands"
)

func newTestRouter(trigger string) *router {
	r := &router{
		bridge: &Bridge{Config: &Config{Trigger: trigger}},
	}
	r.resolve = func(ref *discordgo.MessageReference) *discordgo.Message { return nil }
	return r
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		In  int
		Out string
	}{
		{0, "0 bytes"},
		{900, "900 bytes"},
		{1023, "1023 bytes"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{2199023255552, "2.0 TB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.Out, humanSize(c.In), "size %d", c.In)
	}
}

func TestRewriteEmoji(t *testing.T) {
	assert.Equal(t,
		"nice https://cdn.discordapp.com/emojis/123.png !",
		rewriteEmoji("nice <:blob:123> !"))
	assert.Equal(t,
		"https://cdn.discordapp.com/emojis/456.gif",
		rewriteEmoji("<a:party:456>"))
	// Plain unicode passes through.
	assert.Equal(t, "nice ❤️", rewriteEmoji("nice ❤️"))
}

func TestRenderMultiline(t *testing.T) {
	r := newTestRouter("!")
	m := &discordgo.Message{Content: "one\ntwo\n\nthree"}
	assert.Equal(t, []string{"one", "two", "three"}, r.render(m, m.Content, false))
}

func TestRenderAttachments(t *testing.T) {
	r := newTestRouter("!")
	m := &discordgo.Message{
		Content: "look",
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn.example/a.png", Filename: "a.png", Size: 1536},
			{URL: "https://cdn.example/b.bin", Filename: "b.bin", Size: 900},
		},
	}
	assert.Equal(t, []string{
		"look",
		"https://cdn.example/a.png (a.png - 1.5 KB)",
		"https://cdn.example/b.bin (b.bin - 900 bytes)",
	}, r.render(m, m.Content, false))
}

func TestRenderEditMarker(t *testing.T) {
	r := newTestRouter("!")
	m := &discordgo.Message{Content: "fixed\nlines"}
	assert.Equal(t, []string{"(edited) fixed", "lines"}, r.render(m, m.Content, true))
}

func TestRenderReplyQuoting(t *testing.T) {
	r := newTestRouter("!")
	original := &discordgo.Message{
		ID:      "m1",
		Content: "the original\nwith more",
		Author:  &discordgo.User{Username: "alice"},
	}
	r.resolve = func(ref *discordgo.MessageReference) *discordgo.Message {
		if ref.MessageID == "m1" {
			return original
		}
		return nil
	}

	reply := &discordgo.Message{
		Content:          "agreed",
		MessageReference: &discordgo.MessageReference{MessageID: "m1"},
	}

	// Not recently relayed: quote first.
	assert.Equal(t,
		[]string{"<alice> the original[...]", "agreed"},
		r.render(reply, reply.Content, false))

	// Just relayed: suppressed.
	r.echo.Push("m1", "alice")
	assert.Equal(t, []string{"agreed"}, r.render(reply, reply.Content, false))

	// Pushed out of the 2-slot window: quoted again.
	r.echo.Push("m2", "bob")
	r.echo.Push("m3", "carol")
	assert.Equal(t,
		[]string{"<alice> the original[...]", "agreed"},
		r.render(reply, reply.Content, false))
}

func TestRenderUnresolvableReply(t *testing.T) {
	r := newTestRouter("!")
	reply := &discordgo.Message{
		Content:          "agreed",
		MessageReference: &discordgo.MessageReference{MessageID: "gone"},
	}
	assert.Equal(t, []string{"agreed"}, r.render(reply, reply.Content, false))
}

func TestDispatchCommand(t *testing.T) {
	r := newTestRouter("!")
	r.bridge.Config.Commands = map[string]map[string]interface{}{
		"probe": {"key": "value"},
	}

	got := make(chan *commands.Request, 1)
	commands.Table["probe"] = func(ctx context.Context, req *commands.Request) error {
		got <- req
		return nil
	}
	defer delete(commands.Table, "probe")

	m := &discordgo.Message{Content: `!probe "a b" c`}
	require.True(t, r.dispatchCommand(m, m.Content))

	select {
	case req := <-got:
		assert.Equal(t, []string{"a b", "c"}, req.Args)
		assert.Equal(t, "value", req.Options["key"])
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestDispatchCommandUnknownVerb(t *testing.T) {
	r := newTestRouter("!")
	m := &discordgo.Message{Content: "!nosuchthing hello"}
	// Unknown verbs relay as ordinary chat.
	assert.False(t, r.dispatchCommand(m, m.Content))
	assert.False(t, r.dispatchCommand(m, "plain message"))
}

func TestDispatchCommandSwallowsFailure(t *testing.T) {
	r := newTestRouter("!")
	commands.Table["boom"] = func(ctx context.Context, req *commands.Request) error {
		panic("kaboom")
	}
	defer delete(commands.Table, "boom")

	m := &discordgo.Message{Content: "!boom"}
	assert.True(t, r.dispatchCommand(m, m.Content))
	// Nothing to assert beyond "we did not crash"; give the goroutine a
	// moment to run its recover.
	time.Sleep(10 * time.Millisecond)
}

func TestQuoteSingleLine(t *testing.T) {
	r := newTestRouter("!")
	msg := &discordgo.Message{
		Content: "short",
		Author:  &discordgo.User{Username: "alice"},
		Member:  &discordgo.Member{Nick: "Ali"},
	}
	assert.Equal(t, "<Ali> short", r.quote(msg))
}
