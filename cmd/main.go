package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lavago/internal/commands"
	"github.com/latoulicious/lavago/internal/config"
	"github.com/latoulicious/lavago/internal/handlers"
	"github.com/latoulicious/lavago/internal/presence"
	"github.com/latoulicious/lavago/pkg/lavalink"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create a new Discord session using the provided token
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	// The audio nodes identify us by our own user ID
	if cfg.Cluster.UserID == "" {
		self, err := dg.User("@me")
		if err != nil {
			log.Fatalf("Failed to look up bot user: %v", err)
		}
		cfg.Cluster.UserID = self.ID
	}

	client, err := lavalink.New(cfg.Cluster)
	if err != nil {
		log.Fatalf("Failed to start audio client: %v", err)
	}
	queues := lavalink.NewQueueManager(client, lavalink.DefaultLogger())

	commands.Setup(client, queues)
	handlers.Setup(client)

	// Create presence manager
	presenceManager := presence.NewPresenceManager(dg)

	// Mirror playback onto the bot's presence
	client.AddListener("", lavalink.EventListener{
		OnTrackStart: func(event lavalink.TrackStartEvent) {
			presenceManager.UpdateMusicPresence(event.Track.Info.Title)
		},
		OnTrackEnd: func(event lavalink.TrackEndEvent) {
			if !event.Reason.MayStartNext() {
				presenceManager.ClearMusicPresence()
			}
		},
	})

	dg.AddHandler(handlers.MessageHandler)
	dg.AddHandler(handlers.VoiceServerUpdateHandler)
	dg.AddHandler(handlers.VoiceStateUpdateHandler)

	// Open a websocket connection to Discord and begin listening.
	if err := dg.Open(); err != nil {
		log.Fatalf("Failed to open Discord session: %v", err)
	}

	// Set initial presence
	presenceManager.UpdateDefaultPresence()

	log.Println("Bot is running. Press CTRL-C to exit.")
	// Wait here until CTRL-C or other term signal is received.
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the audio client and the Discord session.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Shutdown(ctx); err != nil {
		log.Printf("Error during audio client shutdown: %v", err)
	}
	dg.Close()
}
