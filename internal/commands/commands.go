package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lavago/pkg/lavalink"
)

var (
	client *lavalink.Client
	queues *lavalink.QueueManager
)

// Setup wires the shared audio client and queue manager into the
// command handlers. Must be called before any command runs.
func Setup(c *lavalink.Client, qm *lavalink.QueueManager) {
	client = c
	queues = qm
}

// commandContext bounds a single user command.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// sendEmbedMessage sends a simple colored embed to a channel
func sendEmbedMessage(s *discordgo.Session, channelID, title, description string, color int) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	s.ChannelMessageSendEmbed(channelID, embed)
}

// findUserVoiceChannel returns the voice channel the user currently sits in
func findUserVoiceChannel(s *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("could not find guild: %v", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("you must be in a voice channel to play music")
}

// waitForVoice polls until the guild's voice credentials reached the
// audio client or the timeout passes.
func waitForVoice(guildID string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return false
		case <-ticker.C:
			if player, ok := client.Player(guildID); ok && player.Voice.Endpoint != "" && player.Voice.SessionID != "" && player.Voice.Token != "" {
				return true
			}
		}
	}
}

// formatDuration renders a track duration for embeds
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
