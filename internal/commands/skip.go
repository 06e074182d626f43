package commands

import (
	"log"

	"github.com/bwmarrin/discordgo"
)

func SkipCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	player, ok := client.Player(m.GuildID)
	if !ok || player.Track == nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Nothing is playing.", 0xff0000)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()

	next, started, err := queues.Skip(ctx, m.GuildID)
	if err != nil {
		log.Printf("Error skipping track in guild %s: %v", m.GuildID, err)
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to skip the track.", 0xff0000)
		return
	}

	if !started {
		sendEmbedMessage(s, m.ChannelID, "⏭️ Track Skipped", "Queue is empty, playback stopped.", 0xffa500)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "⏭️ Track Skipped", "Now playing: **"+next.Track.Info.Title+"**", 0x00ff00)
}
