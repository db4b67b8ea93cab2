package transmitter

import (
	"testing"

	"github.com/matterbridge/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestSendNotBound(t *testing.T) {
	tr := New(nil, "guild")
	err := tr.Send("chan", "alice", "hello")
	assert.Equal(t, ErrNotBound, err)
}

func TestHas(t *testing.T) {
	tr := New(nil, "guild")
	tr.hooks["chan"] = &discordgo.Webhook{ID: "wh1", Name: "IRC"}

	assert.True(t, tr.Has("wh1"))
	assert.False(t, tr.Has("wh2"))
	assert.False(t, tr.Has(""))
}

func TestUnbind(t *testing.T) {
	tr := New(nil, "guild")
	tr.hooks["chan"] = &discordgo.Webhook{ID: "wh1", Name: "IRC"}

	tr.Unbind("chan")
	assert.False(t, tr.Has("wh1"))
	assert.Equal(t, ErrNotBound, tr.Send("chan", "alice", "hello"))
}

func TestBindReusesExisting(t *testing.T) {
	// A matching binding short-circuits before any API call, so a nil
	// session is safe here.
	tr := New(nil, "guild")
	tr.hooks["chan"] = &discordgo.Webhook{ID: "wh1", Name: "IRC"}

	assert.NoError(t, tr.Bind("chan", "IRC"))
}
