package presence

import (
	"log"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// PresenceManager manages the bot's presence
type PresenceManager struct {
	session *discordgo.Session

	mu      sync.RWMutex
	current string
}

// NewPresenceManager creates a new presence manager
func NewPresenceManager(session *discordgo.Session) *PresenceManager {
	return &PresenceManager{
		session: session,
	}
}

// UpdateDefaultPresence sets the idle presence showing server count
func (pm *PresenceManager) UpdateDefaultPresence() {
	guilds := pm.session.State.Guilds

	presence := discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name: "music in " + strconv.Itoa(len(guilds)) + " servers",
				Type: discordgo.ActivityTypeListening,
			},
		},
	}

	if err := pm.session.UpdateStatusComplex(presence); err != nil {
		log.Printf("Failed to update bot presence: %v", err)
	}

	pm.mu.Lock()
	pm.current = "default"
	pm.mu.Unlock()
}

// UpdateMusicPresence shows the currently playing track title
func (pm *PresenceManager) UpdateMusicPresence(songTitle string) {
	presence := discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name:  "to",
				Type:  discordgo.ActivityTypeListening,
				State: songTitle,
			},
		},
	}

	if err := pm.session.UpdateStatusComplex(presence); err != nil {
		log.Printf("Failed to update music presence: %v", err)
	}

	pm.mu.Lock()
	pm.current = "music"
	pm.mu.Unlock()
}

// ClearMusicPresence returns the presence to the default
func (pm *PresenceManager) ClearMusicPresence() {
	pm.UpdateDefaultPresence()
}

// GetCurrentPresence returns the current presence type
func (pm *PresenceManager) GetCurrentPresence() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.current
}
