package mediaurl

import (
	"net/url"
	"strings"
)

// PathPrefix is where locally stored audio is served from.
const PathPrefix = "/uploads/audio/"

// Audio returns the locator for a locally stored file. An empty baseURL
// yields a root-relative path.
func Audio(baseURL, name string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return PathPrefix + name
	}
	return baseURL + PathPrefix + name
}

// ParseAudioName extracts the file name from a local audio locator. It
// returns false for remote URLs and anything that would escape the upload
// directory.
func ParseAudioName(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	path := u.Path
	if path == "" {
		path = raw
	}

	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}

	name := strings.TrimPrefix(path, PathPrefix)
	if !ValidName(name) {
		return "", false
	}

	return name, true
}

// ValidName reports whether name is a single safe path segment.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
