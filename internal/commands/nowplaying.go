package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func NowPlayingCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	player, ok := client.Player(m.GuildID)
	if !ok || player.Track == nil {
		sendEmbedMessage(s, m.ChannelID, "📭 Nothing Playing", "No track is currently playing.", 0xffa500)
		return
	}

	info := player.Track.Info
	status := "Playing"
	if player.Paused {
		status = "Paused"
	}

	description := fmt.Sprintf("**%s**\nBy: %s\nPosition: %s / %s\nStatus: %s\nNode: %s",
		info.Title,
		info.Author,
		formatDuration(player.Position),
		formatDuration(info.Duration()),
		status,
		player.Node,
	)
	sendEmbedMessage(s, m.ChannelID, "🎵 Now Playing", description, 0x00ff00)
}
