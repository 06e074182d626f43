package lavalink

import "time"

// HealthState represents the lifecycle state of a node connection.
type HealthState int

const (
	HealthConnecting HealthState = iota
	HealthReady
	HealthDegraded
	HealthDisconnected
	HealthReconnecting
	HealthFailed
)

func (s HealthState) String() string {
	switch s {
	case HealthConnecting:
		return "connecting"
	case HealthReady:
		return "ready"
	case HealthDegraded:
		return "degraded"
	case HealthDisconnected:
		return "disconnected"
	case HealthReconnecting:
		return "reconnecting"
	case HealthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// usable reports whether a node in this state can accept commands and
// new guild assignments.
func (s HealthState) usable() bool {
	return s == HealthReady || s == HealthDegraded
}

// Track is a playable track as the node encodes it. Encoded is the
// opaque node-side representation and is what gets sent back on play.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// TrackInfo carries the decoded metadata of a track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsSeekable bool   `json:"isSeekable"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	SourceName string `json:"sourceName"`
}

// Duration returns the track length as a time.Duration.
func (i TrackInfo) Duration() time.Duration {
	return time.Duration(i.Length) * time.Millisecond
}

// TrackException describes a playback failure reported by the node.
type TrackException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// TrackEndReason is the node-reported reason a track stopped playing.
type TrackEndReason string

const (
	TrackEndFinished   TrackEndReason = "finished"
	TrackEndLoadFailed TrackEndReason = "loadFailed"
	TrackEndStopped    TrackEndReason = "stopped"
	TrackEndReplaced   TrackEndReason = "replaced"
	TrackEndCleanup    TrackEndReason = "cleanup"
)

// MayStartNext reports whether the next queued track should start after
// a track ended for this reason.
func (r TrackEndReason) MayStartNext() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// Stats is the periodic statistics frame a node pushes over its socket.
type Stats struct {
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         MemoryStats `json:"memory"`
	CPU            CPUStats    `json:"cpu"`
}

// MemoryStats is the memory section of a stats frame.
type MemoryStats struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPUStats is the cpu section of a stats frame.
type CPUStats struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// PlayerState is the position snapshot a node pushes in playerUpdate frames.
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// VoiceState holds the Discord voice credentials a node needs to join a
// guild's voice channel on the bot's behalf.
type VoiceState struct {
	SessionID string `json:"sessionId"`
	Endpoint  string `json:"endpoint"`
	Token     string `json:"token"`
}

// complete reports whether all three credentials are present.
func (v VoiceState) complete() bool {
	return v.SessionID != "" && v.Endpoint != "" && v.Token != ""
}

// Band is a single equalizer band. Gain ranges -0.25 to 1.0 where 0 is
// the natural level.
type Band struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// Filters is the filter chain applied to a guild's player.
type Filters struct {
	Volume    *float64 `json:"volume,omitempty"`
	Equalizer []Band   `json:"equalizer,omitempty"`
}

// Fifteen-band equalizer presets. Index is the band number, value the gain.
var (
	EQBase = [15]float64{
		0.2, 0.15, 0.1, 0.05, 0.0, -0.05, -0.1, -0.1,
		-0.1, -0.1, -0.1, -0.1, -0.1, -0.1, -0.1,
	}
	EQBoost = [15]float64{
		-0.075, 0.125, 0.125, 0.1, 0.1, 0.05, 0.075, 0.0,
		0.0, 0.0, 0.0, 0.0, 0.125, 0.15, 0.05,
	}
	EQMetal = [15]float64{
		0.0, 0.1, 0.1, 0.15, 0.13, 0.1, 0.0, 0.125,
		0.175, 0.175, 0.125, 0.125, 0.1, 0.075, 0.0,
	}
	EQPiano = [15]float64{
		-0.25, -0.25, -0.125, 0.0, 0.25, 0.25, 0.0, -0.25,
		-0.25, 0.0, 0.0, 0.5, 0.25, -0.025, 0.0,
	}
)

// EqualizerPreset builds the band list for one of the EQ presets.
func EqualizerPreset(gains [15]float64) []Band {
	bands := make([]Band, len(gains))
	for i, gain := range gains {
		bands[i] = Band{Band: i, Gain: gain}
	}
	return bands
}
