package nostr

import (
	"net/url"
	"strings"

	"github.com/purrgrammer/grimoire-sub000/internal/util"
)

// NormalizeRelayURL canonicalizes a relay URL to scheme://host[:port]/path
// form: scheme and host lowercased, scheme restricted to ws/wss, path ending
// in exactly one trailing slash, query and fragment dropped. The function is
// deterministic and idempotent, so the compiler and the relay state tracker
// always map the same logical relay to the same key.
// Returns empty string if the URL is invalid or unsafe.
func NormalizeRelayURL(relayURL string) string {
	relayURL = strings.TrimSpace(relayURL)
	if relayURL == "" {
		return ""
	}

	// Quick reject for obviously bad URLs (no colon = no protocol)
	if !strings.Contains(relayURL, "://") {
		return ""
	}

	// Reject URL-encoded spaces (indicates garbage text as URL)
	if strings.Contains(relayURL, "%20") || strings.Contains(relayURL, " ") {
		return ""
	}

	// Reject double protocols (wss://https://...)
	if strings.Count(relayURL, "://") > 1 {
		return ""
	}

	parsed, err := url.Parse(relayURL)
	if err != nil {
		return ""
	}

	// Must be ws:// or wss:// (not ww://, http://, etc)
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "ws" && scheme != "wss" {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	if len(host) < 3 && !util.IsLoopbackHost(host) {
		return ""
	}
	if !strings.Contains(host, ".") && !util.IsLoopbackHost(host) {
		return ""
	}
	// Block internal/unreachable hosts (.onion, .local, .internal)
	if util.IsInternalHost(host) {
		return ""
	}

	result := scheme + "://" + host
	if parsed.Port() != "" {
		result += ":" + parsed.Port()
	}

	path := parsed.EscapedPath()
	switch {
	case path == "" || path == "/":
		result += "/"
	case strings.HasSuffix(path, "/"):
		result += strings.TrimRight(path, "/") + "/"
	default:
		result += path + "/"
	}

	return result
}
