package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func NodesCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	snapshots := client.Nodes()
	if len(snapshots) == 0 {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "No audio nodes are configured.", 0xff0000)
		return
	}

	var b strings.Builder
	for _, snap := range snapshots {
		fmt.Fprintf(&b, "**%s** - %s, %d guilds, %d players\n",
			snap.Name, snap.State, snap.AssignedGuilds, snap.Stats.PlayingPlayers)
	}
	sendEmbedMessage(s, m.ChannelID, "🖥️ Audio Nodes", b.String(), 0x0099ff)
}
