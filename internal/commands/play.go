package commands

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lavago/pkg/lavalink"
	"github.com/latoulicious/lavago/pkg/sources"
)

// PlayCommand resolves the input to a track and plays or queues it
func PlayCommand(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) < 1 {
		sendEmbedMessage(s, m.ChannelID, "❌ Usage Error", "Please provide a YouTube URL or search query.", 0xff0000)
		return
	}

	guildID := m.GuildID

	channelID, err := findUserVoiceChannel(s, guildID, m.Author.ID)
	if err != nil {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", err.Error(), 0xff0000)
		return
	}

	// Send the gateway voice join without opening a local voice
	// connection; the node plays audio, not this process.
	if err := s.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		log.Printf("Error joining voice channel: %v", err)
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to join your voice channel.", 0xff0000)
		return
	}

	if !waitForVoice(guildID, 10*time.Second) {
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Voice connection never became ready.", 0xff0000)
		return
	}

	identifier := sources.Resolve(strings.Join(args, " "))

	ctx, cancel := commandContext()
	defer cancel()

	result, err := client.LoadTracks(ctx, identifier)
	if err != nil {
		log.Printf("Error loading tracks for %q: %v", identifier, err)
		sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to load the track. Please try again.", 0xff0000)
		return
	}

	tracks, err := result.Tracks()
	if err != nil || len(tracks) == 0 {
		sendEmbedMessage(s, m.ChannelID, "❌ No Results", "Nothing found for your query.", 0xff0000)
		return
	}

	// Whole playlists queue every track; searches take the top hit.
	toQueue := tracks[:1]
	if result.LoadType == lavalink.LoadTypePlaylist {
		toQueue = tracks
	}

	var startedNow bool
	for _, track := range toQueue {
		started, playErr := queues.Enqueue(ctx, guildID, lavalink.QueuedTrack{
			Track:       track,
			RequestedBy: m.Author.ID,
			AddedAt:     time.Now(),
		})
		if playErr != nil {
			log.Printf("Error starting playback in guild %s: %v", guildID, playErr)
			sendEmbedMessage(s, m.ChannelID, "❌ Error", "Failed to start playback.", 0xff0000)
			return
		}
		startedNow = startedNow || started
	}

	first := toQueue[0]
	if result.LoadType == lavalink.LoadTypePlaylist {
		description := fmt.Sprintf("Queued **%d** tracks from the playlist.", len(toQueue))
		sendEmbedMessage(s, m.ChannelID, "🎵 Playlist Added", description, 0x00ff00)
		return
	}

	description := fmt.Sprintf("**%s**\nDuration: %s", first.Info.Title, formatDuration(first.Info.Duration()))
	if startedNow {
		sendEmbedMessage(s, m.ChannelID, "🎵 Now Playing", description, 0x00ff00)
	} else {
		position := queues.Get(guildID).Len()
		sendEmbedMessage(s, m.ChannelID, "🎵 Song Added", fmt.Sprintf("%s\nPosition in queue: %d", description, position), 0x00ff00)
	}
}
