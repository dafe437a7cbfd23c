package session

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// VideoIDFromURL extracts the video identifier from a watch address such as
// https://www.youtube.com/watch?v=abc123 or https://youtu.be/abc123.
func VideoIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == "youtu.be":
		id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if strings.TrimSuffix(u.Path, "/") != "/watch" {
			return "", false
		}
		id = u.Query().Get("v")
	default:
		return "", false
	}

	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}
