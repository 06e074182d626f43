package commands

import (
	"log"

	"github.com/bwmarrin/discordgo"
)

func StopCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	player, ok := client.Player(m.GuildID)
	if !ok || player.Track == nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Nothing is playing.", 0xff0000)
		return
	}

	// Drop the queue first so the track end event does not auto-advance.
	queues.Clear(m.GuildID)

	ctx, cancel := commandContext()
	defer cancel()
	if err := client.Stop(ctx, m.GuildID); err != nil {
		log.Printf("Error stopping playback in guild %s: %v", m.GuildID, err)
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to stop playback.", 0xff0000)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "⏹️ Playback Stopped", "Playback stopped and the queue was cleared.", 0xffa500)
}
