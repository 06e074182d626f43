package commands

import (
	"github.com/bwmarrin/discordgo"
)

func ResumeCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	player, ok := client.Player(m.GuildID)
	if !ok || player.Track == nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Nothing is playing.", 0xff0000)
		return
	}
	if !player.Paused {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Playback is not paused.", 0xff0000)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := client.Resume(ctx, m.GuildID); err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to resume playback.", 0xff0000)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "▶️ Playback Resumed", "Music playback has been resumed.", 0x00ff00)
}
