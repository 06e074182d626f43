package commands

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

func VolumeCommand(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	player, ok := client.Player(m.GuildID)
	if !ok {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Nothing is playing.", 0xff0000)
		return
	}

	if len(args) < 1 {
		sendEmbedMessage(s, m.ChannelID, "🔊 Volume", fmt.Sprintf("Current volume: **%d**", player.Volume), 0x00ff00)
		return
	}

	volume, err := strconv.Atoi(args[0])
	if err != nil || volume < 0 || volume > 1000 {
		sendEmbedMessage(s, m.ChannelID, "❌ Usage Error", "Volume must be a number between 0 and 1000.", 0xff0000)
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := client.SetVolume(ctx, m.GuildID, volume); err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to change the volume.", 0xff0000)
		return
	}
	sendEmbedMessage(s, m.ChannelID, "🔊 Volume Changed", fmt.Sprintf("Volume set to **%d**", volume), 0x00ff00)
}
