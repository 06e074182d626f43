package commands

import (
	"log"

	"github.com/bwmarrin/discordgo"
)

func LeaveCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	guildID := m.GuildID

	queues.Drop(guildID)

	ctx, cancel := commandContext()
	defer cancel()
	if err := client.Disconnect(ctx, guildID); err != nil {
		log.Printf("Error releasing player for guild %s: %v", guildID, err)
	}

	// An empty channel ID tells the gateway to leave voice.
	if err := s.ChannelVoiceJoinManual(guildID, "", false, true); err != nil {
		log.Printf("Error leaving voice channel in guild %s: %v", guildID, err)
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to leave the voice channel.", 0xff0000)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "👋 Left Voice Channel", "Disconnected and cleared the queue.", 0xffa500)
}
