package util

import "strings"

// IsInternalHost checks if a hostname is internal/private and should not be
// accessed. Used to prevent SSRF-style lookups against internal networks.
func IsInternalHost(host string) bool {
	host = strings.ToLower(host)
	return strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") ||
		strings.HasSuffix(host, ".onion") ||
		strings.HasSuffix(host, ".localhost")
}

// IsLoopbackHost checks if a hostname resolves to localhost.
func IsLoopbackHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		host == "[::1]"
}

// IsPrivateHost checks if a host should be blocked for security reasons.
// Combines internal host and loopback checks.
func IsPrivateHost(host string) bool {
	return IsInternalHost(host) || IsLoopbackHost(host)
}
