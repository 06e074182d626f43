// Package sources normalizes user input into the track identifiers
// audio nodes understand.
package sources

import (
	"net/url"
	"strings"

	youtube "github.com/kkdai/youtube/v2"
)

// searchPrefix asks the node to run a YouTube search for the identifier.
const searchPrefix = "ytsearch:"

// IsURL reports whether the input looks like a web address.
func IsURL(input string) bool {
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// Resolve turns raw user input into a node track identifier. URLs pass
// through, with YouTube links normalized to their canonical watch form
// (shorts, youtu.be and embed variants included). Anything else becomes
// a search query.
func Resolve(input string) string {
	input = strings.TrimSpace(input)
	if !IsURL(input) {
		return searchPrefix + input
	}

	// ExtractVideoID pulls an "id" out of almost any URL, so only
	// YouTube hosts go through normalization.
	if isYouTubeHost(input) {
		if videoID, err := youtube.ExtractVideoID(input); err == nil {
			return "https://www.youtube.com/watch?v=" + videoID
		}
	}
	return input
}

// isYouTubeHost reports whether the URL points at a YouTube domain.
func isYouTubeHost(input string) bool {
	parsed, err := url.Parse(input)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	return host == "youtube.com" || host == "m.youtube.com" ||
		host == "music.youtube.com" || host == "youtu.be"
}

// Search forces a search identifier even when the input parses as a URL.
func Search(query string) string {
	return searchPrefix + strings.TrimSpace(query)
}
