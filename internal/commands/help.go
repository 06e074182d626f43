package commands

import (
	"github.com/bwmarrin/discordgo"
)

func HelpCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	description := "**!play <url or query>** - Play a YouTube track or queue it\n" +
		"**!pause** - Pause playback\n" +
		"**!resume** - Resume playback\n" +
		"**!skip** - Skip to the next queued track\n" +
		"**!stop** - Stop playback and clear the queue\n" +
		"**!np** - Show the current track\n" +
		"**!queue** - Show queued tracks\n" +
		"**!clear** - Clear the queue\n" +
		"**!volume [0-1000]** - Show or set the volume\n" +
		"**!nodes** - Show audio node health\n" +
		"**!leave** - Leave the voice channel\n" +
		"**!help** - Show this message"
	sendEmbedMessage(s, m.ChannelID, "📖 Commands", description, 0x0099ff)
}
