package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// LoadType classifies the result of a loadtracks call.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is the raw result of resolving a track identifier on a node.
// Data is decoded lazily because its shape depends on LoadType.
type LoadResult struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

// PlaylistInfo describes a loaded playlist.
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// Tracks flattens the result into a track list: a single track for
// direct loads, the playlist contents for playlists, the match list for
// searches, and nil when nothing matched.
func (r *LoadResult) Tracks() ([]Track, error) {
	switch r.LoadType {
	case LoadTypeTrack:
		var track Track
		if err := json.Unmarshal(r.Data, &track); err != nil {
			return nil, errors.Wrap(err, "decoding track result")
		}
		return []Track{track}, nil
	case LoadTypePlaylist:
		var playlist struct {
			Info   PlaylistInfo `json:"info"`
			Tracks []Track      `json:"tracks"`
		}
		if err := json.Unmarshal(r.Data, &playlist); err != nil {
			return nil, errors.Wrap(err, "decoding playlist result")
		}
		return playlist.Tracks, nil
	case LoadTypeSearch:
		var tracks []Track
		if err := json.Unmarshal(r.Data, &tracks); err != nil {
			return nil, errors.Wrap(err, "decoding search result")
		}
		return tracks, nil
	case LoadTypeEmpty:
		return nil, nil
	case LoadTypeError:
		exception, err := r.Exception()
		if err != nil {
			return nil, err
		}
		return nil, errors.Errorf("track load failed: %s", exception.Message)
	default:
		return nil, errors.Errorf("unknown load type %q", r.LoadType)
	}
}

// Exception decodes the error payload of a failed load.
func (r *LoadResult) Exception() (*TrackException, error) {
	var exception TrackException
	if err := json.Unmarshal(r.Data, &exception); err != nil {
		return nil, errors.Wrap(err, "decoding load exception")
	}
	return &exception, nil
}

// playerUpdateRequest is the REST body mutating a guild's player. Pointer
// fields are omitted when nil so partial updates only touch what they set.
type playerUpdateRequest struct {
	Track    *trackUpdate `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	EndTime  *int64       `json:"endTime,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Filters  *Filters     `json:"filters,omitempty"`
	Voice    *voiceUpdate `json:"voice,omitempty"`
}

// trackUpdate sets or clears the playing track. A nil Encoded is
// serialized as an explicit null, which stops playback.
type trackUpdate struct {
	Encoded *string `json:"encoded"`
}

type voiceUpdate struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// errorResponse is the node's error body on rejected requests.
type errorResponse struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// restClient talks to a single node's REST surface.
type restClient struct {
	baseURL    string
	password   string
	httpClient *http.Client
	logger     Logger
}

func newRestClient(cfg NodeConfig, logger Logger) *restClient {
	return &restClient{
		baseURL:  cfg.restURL(),
		password: cfg.Password,
		// Per-call deadlines come from the request context.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// do sends a request and decodes the response into out when non-nil.
// Node-rejected requests surface as CommandError; handshake-level
// rejections map to ErrUnauthorized and transport failures wrap
// ErrUnreachable.
func (r *restClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", r.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.WithMessagef(ErrUnreachable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var nodeErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&nodeErr); decodeErr != nil {
			return &CommandError{Status: resp.StatusCode, Path: path}
		}
		return &CommandError{Status: resp.StatusCode, Message: nodeErr.Message, Path: nodeErr.Path}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

// updatePlayer patches a guild's player in the given node session. With
// noReplace the node keeps the current track if one is playing.
func (r *restClient) updatePlayer(ctx context.Context, sessionID, guildID string, update playerUpdateRequest, noReplace bool) error {
	path := fmt.Sprintf("/v4/sessions/%s/players/%s?noReplace=%t", sessionID, guildID, noReplace)
	return r.do(ctx, http.MethodPatch, path, update, nil)
}

// destroyPlayer removes a guild's player from the node session.
func (r *restClient) destroyPlayer(ctx context.Context, sessionID, guildID string) error {
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

// loadTracks resolves a track identifier (URL or search query) on the node.
func (r *restClient) loadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	var result LoadResult
	if err := r.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// decodeTrack expands an encoded track string into its metadata.
func (r *restClient) decodeTrack(ctx context.Context, encoded string) (*Track, error) {
	path := "/v4/decodetrack?encodedTrack=" + url.QueryEscape(encoded)
	var track Track
	if err := r.do(ctx, http.MethodGet, path, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// stats fetches the node's current statistics on demand, outside the
// periodic frames the socket pushes.
func (r *restClient) stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := r.do(ctx, http.MethodGet, "/v4/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// NodeInfo describes the server software a node runs.
type NodeInfo struct {
	Version struct {
		Semver string `json:"semver"`
		Major  int    `json:"major"`
		Minor  int    `json:"minor"`
		Patch  int    `json:"patch"`
	} `json:"version"`
	JVM            string   `json:"jvm"`
	Lavaplayer     string   `json:"lavaplayer"`
	SourceManagers []string `json:"sourceManagers"`
}

// info fetches the node's version and source manager inventory.
func (r *restClient) info(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := r.do(ctx, http.MethodGet, "/v4/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
