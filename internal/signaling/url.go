package signaling

import (
	"fmt"
	"net/url"
)

// URLFromOrigin derives the signaling endpoint from an http(s) origin,
// mirroring the origin's scheme: https -> wss, http -> ws. The path is
// always /ws regardless of any path on the origin.
func URLFromOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("bad origin %q: %w", origin, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("bad origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
