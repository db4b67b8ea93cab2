// Package transmitter manages the named Discord webhooks the bridge
// posts through ("relay identities"). Each bridged channel gets one
// webhook, resolved by name and created on demand, so repeated
// configuration passes are idempotent.
package transmitter

import (
	"sync"

	"github.com/matterbridge/discordgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrNotBound is returned when a channel has no resolved webhook.
var ErrNotBound = errors.New("no relay identity bound for this channel")

// A Transmitter owns the webhook bindings for a single guild.
type Transmitter struct {
	session *discordgo.Session
	guild   string

	mu    sync.Mutex
	hooks map[string]*discordgo.Webhook // channel ID -> webhook
}

// New returns a Transmitter for the given guild.
func New(session *discordgo.Session, guild string) *Transmitter {
	return &Transmitter{
		session: session,
		guild:   guild,
		hooks:   make(map[string]*discordgo.Webhook),
	}
}

// Bind resolves the webhook named name on the given channel, creating
// it when absent, and remembers it for Send. Calling Bind again with
// the same name reuses the existing webhook.
func (t *Transmitter) Bind(channelID, name string) error {
	t.mu.Lock()
	if wh, ok := t.hooks[channelID]; ok && wh.Name == name {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	hooks, err := t.session.ChannelWebhooks(channelID)
	if err != nil {
		return errors.Wrap(err, "could not list channel webhooks")
	}

	var wh *discordgo.Webhook
	for _, hook := range hooks {
		if hook.Name == name {
			wh = hook
			break
		}
	}

	if wh == nil {
		wh, err = t.session.WebhookCreate(channelID, name, "")
		if err != nil {
			return errors.Wrap(err, "could not create webhook")
		}
		log.WithFields(log.Fields{
			"id":      wh.ID,
			"name":    wh.Name,
			"channel": channelID,
		}).Infoln("Created webhook")
	}

	t.mu.Lock()
	t.hooks[channelID] = wh
	t.mu.Unlock()
	return nil
}

// Unbind forgets the webhook binding for a channel.
func (t *Transmitter) Unbind(channelID string) {
	t.mu.Lock()
	delete(t.hooks, channelID)
	t.mu.Unlock()
}

// Send posts content to the channel's bound webhook under the given
// username. It waits for Discord to acknowledge the message.
func (t *Transmitter) Send(channelID, username, content string) error {
	t.mu.Lock()
	wh := t.hooks[channelID]
	t.mu.Unlock()

	if wh == nil {
		return ErrNotBound
	}

	_, err := t.session.WebhookExecute(wh.ID, wh.Token, true, &discordgo.WebhookParams{
		Username: username,
		Content:  content,
	})
	if err != nil {
		return errors.Wrap(err, "could not execute webhook")
	}
	return nil
}

// Has reports whether id belongs to one of our webhooks. Used to
// filter Discord's echo of our own relayed messages.
func (t *Transmitter) Has(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, wh := range t.hooks {
		if wh.ID == id {
			return true
		}
	}
	return false
}
