package commands

import (
	"github.com/bwmarrin/discordgo"
)

func PauseCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	player, ok := client.Player(m.GuildID)
	if !ok || player.Track == nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Nothing is playing.", 0xff0000)
		return
	}
	if player.Paused {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Playback is already paused.", 0xff0000)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := client.Pause(ctx, m.GuildID); err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to pause playback.", 0xff0000)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "⏸️ Playback Paused", "Music playback has been paused.", 0xffa500)
}
