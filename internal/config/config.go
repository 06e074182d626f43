package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/latoulicious/lavago/pkg/lavalink"
)

var ErrDiscordTokenNotSet = errors.New("DISCORD_TOKEN is not set")

type Config struct {
	DiscordToken string
	Cluster      *lavalink.ClusterConfig
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file when present
	godotenv.Load()

	discordToken := os.Getenv("DISCORD_TOKEN")
	if discordToken == "" {
		return nil, ErrDiscordTokenNotSet
	}

	cluster := lavalink.DefaultClusterConfig()
	cluster.LoadFromEnvironment()
	if len(cluster.Nodes) == 0 {
		return nil, errors.New("no audio node configured, set LAVALINK_HOST")
	}

	return &Config{
		DiscordToken: discordToken,
		Cluster:      cluster,
	}, nil
}
