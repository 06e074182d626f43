package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lavago/internal/commands"
)

func MessageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore all messages created by the bot itself
	if m.Author.ID == s.State.User.ID {
		return
	}

	if !strings.HasPrefix(m.Content, "!") {
		return
	}

	args := strings.Fields(m.Content)
	command := strings.TrimPrefix(args[0], "!")

	switch command {
	case "play":
		commands.PlayCommand(s, m, args[1:])
	case "pause":
		commands.PauseCommand(s, m)
	case "resume":
		commands.ResumeCommand(s, m)
	case "skip":
		commands.SkipCommand(s, m)
	case "stop":
		commands.StopCommand(s, m)
	case "np", "nowplaying":
		commands.NowPlayingCommand(s, m)
	case "queue":
		commands.QueueCommand(s, m)
	case "clear":
		commands.ClearCommand(s, m)
	case "volume":
		commands.VolumeCommand(s, m, args[1:])
	case "nodes":
		commands.NodesCommand(s, m)
	case "leave":
		commands.LeaveCommand(s, m)
	case "help":
		commands.HelpCommand(s, m)
	default:
		s.ChannelMessageSend(m.ChannelID, "Unknown command. Try !help for the full list.")
	}
}
