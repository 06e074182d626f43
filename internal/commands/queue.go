package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const queueDisplayLimit = 10

func QueueCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	items := queues.Get(m.GuildID).List()
	player, playing := client.Player(m.GuildID)

	if len(items) == 0 && (!playing || player.Track == nil) {
		sendEmbedMessage(s, m.ChannelID, "📭 Queue Empty", "Nothing is playing and the queue is empty.", 0xffa500)
		return
	}

	var b strings.Builder
	if playing && player.Track != nil {
		fmt.Fprintf(&b, "**Now Playing:** %s\n\n", player.Track.Info.Title)
	}

	shown := items
	if len(shown) > queueDisplayLimit {
		shown = shown[:queueDisplayLimit]
	}
	for i, item := range shown {
		fmt.Fprintf(&b, "%d. **%s** (%s)\n", i+1, item.Track.Info.Title, formatDuration(item.Track.Info.Duration()))
	}
	if len(items) > queueDisplayLimit {
		fmt.Fprintf(&b, "\n...and %d more", len(items)-queueDisplayLimit)
	}

	sendEmbedMessage(s, m.ChannelID, fmt.Sprintf("🎵 Queue (%d tracks)", len(items)), b.String(), 0x00ff00)
}

func ClearCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	queues.Clear(m.GuildID)
	sendEmbedMessage(s, m.ChannelID, "🗑️ Queue Cleared", "All pending tracks were removed.", 0xffa500)
}
