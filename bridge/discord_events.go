package bridge

import (
	"github.com/matterbridge/discordgo"
	log "github.com/sirupsen/logrus"
)

func (b *Bridge) registerDiscordHandlers() {
	b.discord.AddHandler(b.onReady)
	b.discord.AddHandler(b.onGuildCreate)
	b.discord.AddHandler(b.onGuildMembersChunk)

	b.discord.AddHandler(b.onMessageCreate)
	b.discord.AddHandler(b.onMessageUpdate)
	b.discord.AddHandler(b.onMessageReactionAdd)

	b.discord.AddHandler(b.onGuildMemberAdd)
	b.discord.AddHandler(b.onGuildMemberRemove)
	b.discord.AddHandler(b.onGuildMemberUpdate)

	b.discord.AddHandler(b.onChannelCreate)
	b.discord.AddHandler(b.onChannelUpdate)
	b.discord.AddHandler(b.onChannelDelete)
}

// ours filters events from other guilds the bot happens to be in.
func (b *Bridge) ours(guildID string) bool {
	return guildID == "" || guildID == b.Config.GuildID
}

// reconfigure re-applies the full topology on the server loop.
func (b *Bridge) reconfigure() {
	b.server.Do(func() {
		guild, err := b.guild()
		if err != nil {
			log.WithError(err).Errorln("guild not in state")
			return
		}
		b.server.applyTopology(guild)
	})
}

// resync re-diffs channel rosters on the server loop.
func (b *Bridge) resync() {
	b.server.Do(func() {
		guild, err := b.guild()
		if err != nil {
			return
		}
		b.server.syncRosters(guild)
	})
}

func (b *Bridge) onReady(s *discordgo.Session, m *discordgo.Ready) {
	log.Infoln("Discord bridge ready")
	// Fires GuildMembersChunk events that fill the member state.
	if err := s.RequestGuildMembers(b.Config.GuildID, "", 0, false); err != nil {
		log.WithError(err).Warnln("could not request guild members")
	}
}

func (b *Bridge) onGuildCreate(s *discordgo.Session, m *discordgo.GuildCreate) {
	if m.ID != b.Config.GuildID {
		return
	}
	log.WithField("guild", m.Name).Infoln("Configuring channels")
	b.reconfigure()
}

func (b *Bridge) onGuildMembersChunk(s *discordgo.Session, m *discordgo.GuildMembersChunk) {
	if !b.ours(m.GuildID) {
		return
	}
	b.resync()
}

func (b *Bridge) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if !b.ours(m.GuildID) {
		return
	}
	msg := m.Message
	b.server.Do(func() { b.router.handleMessage(msg, false) })
}

func (b *Bridge) onMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if !b.ours(m.GuildID) {
		return
	}
	b.server.Do(func() { b.router.handleEdit(m) })
}

func (b *Bridge) onMessageReactionAdd(s *discordgo.Session, m *discordgo.MessageReactionAdd) {
	if !b.ours(m.GuildID) {
		return
	}
	mr := m.MessageReaction
	b.server.Do(func() { b.router.handleReaction(mr) })
}

func (b *Bridge) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if !b.ours(m.GuildID) {
		return
	}
	b.resync()
}

func (b *Bridge) onGuildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if !b.ours(m.GuildID) {
		return
	}
	b.resync()
}

func (b *Bridge) onGuildMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if !b.ours(m.GuildID) {
		return
	}
	b.resync()
}

func (b *Bridge) onChannelCreate(s *discordgo.Session, m *discordgo.ChannelCreate) {
	if !b.ours(m.GuildID) {
		return
	}
	b.reconfigure()
}

func (b *Bridge) onChannelUpdate(s *discordgo.Session, m *discordgo.ChannelUpdate) {
	if !b.ours(m.GuildID) {
		return
	}
	b.reconfigure()
}

func (b *Bridge) onChannelDelete(s *discordgo.Session, m *discordgo.ChannelDelete) {
	if !b.ours(m.GuildID) {
		return
	}
	b.reconfigure()
}
