// Package bridge implements the protocol gateway between a Discord
// guild and an embedded IRC server: the per-connection session state
// machine, the channel reconciliation engine, and the router that
// decides what each side sees.
package bridge

import (
	"github.com/gobwas/glob"
	"github.com/matterbridge/discordgo"
	"github.com/pkg/errors"

	"github.com/avaraline/iridium/transmitter"
)

// Config to be passed to New.
type Config struct {
	// ServerName is the bridge's IRC server name.
	ServerName string
	Bind       string
	Port       int
	// Password, when set, is required from clients via PASS.
	Password string
	// Automap bridges every text channel in the guild, not just the
	// ones with a configuration entry.
	Automap bool

	DiscordToken string
	GuildID      string
	// Trigger is the bang-command prefix, e.g. "!".
	Trigger string
	// IgnoreChannels excludes matching channel names from automapping.
	IgnoreChannels []glob.Glob

	// Channels are the per-channel overrides, keyed by bare name.
	Channels map[string]ChannelOptions
	// Commands holds per-command option tables, passed through to
	// handlers verbatim.
	Commands map[string]map[string]interface{}
}

// A Bridge ties one Discord guild to one embedded IRC server.
type Bridge struct {
	Config *Config

	discord *discordgo.Session
	relay   *transmitter.Transmitter
	server  *Server
	router  *router
}

// New wires up a Bridge. Nothing connects until Open.
func New(conf *Config) (*Bridge, error) {
	if conf.GuildID == "" {
		return nil, errors.New("missing guild id")
	}

	session, err := discordgo.New("Bot " + conf.DiscordToken)
	if err != nil {
		return nil, errors.Wrap(err, "could not create discord session")
	}
	session.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMessageReactions)
	// Keep a message cache so reply references usually resolve without
	// a round trip.
	session.State.MaxMessageCount = 200

	b := &Bridge{
		Config:  conf,
		discord: session,
	}
	b.relay = transmitter.New(session, conf.GuildID)
	b.server = newServer(conf, b.relay)
	// Rosters follow Discord's own visibility: members without read
	// access to a channel never appear in its WHO or NAMES.
	b.server.visible = func(userID, channelID string) bool {
		perms, err := session.State.UserChannelPermissions(userID, channelID)
		if err != nil {
			return false
		}
		return perms&discordgo.PermissionReadMessages != 0
	}
	b.router = newRouter(b)
	b.registerDiscordHandlers()

	return b, nil
}

// Open starts the server loop and connects to Discord. The IRC
// listener opens later, once the guild topology has been applied.
func (b *Bridge) Open() error {
	go b.server.run()
	if err := b.discord.Open(); err != nil {
		return errors.Wrap(err, "could not open discord connection")
	}
	return nil
}

// Close tears the bridge down.
func (b *Bridge) Close() {
	b.discord.Close()
	b.server.stop()
}

// Reconfigure swaps in new channel overrides and re-applies the
// topology. Used by configuration live-reload.
func (b *Bridge) Reconfigure(channels map[string]ChannelOptions, automap bool) {
	b.server.Do(func() {
		b.Config.Channels = channels
		b.Config.Automap = automap
		if guild, err := b.guild(); err == nil {
			b.server.applyTopology(guild)
		}
	})
}

func (b *Bridge) guild() (*discordgo.Guild, error) {
	return b.discord.State.Guild(b.Config.GuildID)
}
