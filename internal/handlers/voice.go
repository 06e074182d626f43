package handlers

import (
	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lavago/pkg/lavalink"
)

var client *lavalink.Client

// Setup wires the audio client that receives gateway voice credentials.
// Must be called before the session opens.
func Setup(c *lavalink.Client) {
	client = c
}

// VoiceServerUpdateHandler forwards the voice server token and endpoint
// to the audio client so the assigned node can open its own connection.
func VoiceServerUpdateHandler(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if client == nil {
		return
	}
	client.VoiceServerUpdate(e.GuildID, e.Endpoint, e.Token)
}

// VoiceStateUpdateHandler forwards the bot's own voice session ID. Other
// users' voice state changes are irrelevant to playback.
func VoiceStateUpdateHandler(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if client == nil || e.UserID != s.State.User.ID {
		return
	}
	client.VoiceStateUpdate(e.GuildID, e.SessionID)
}
