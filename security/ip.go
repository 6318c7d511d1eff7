package security

import (
	"net"
	"net/http"
	"strings"
)

// LoopbackClientKey is the client key used when no identity header is present.
const LoopbackClientKey = "127.0.0.1"

// DefaultClientKeyHeaders are consulted in order to identify a client.
var DefaultClientKeyHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// ClientKeyExtractor derives the rate-limit key for a request.
//
// SECURITY: the identity headers are client-controlled unless a trusted
// reverse proxy overwrites them. The key is a coarse abuse-deterrent
// identity, not an authenticated one.
type ClientKeyExtractor struct {
	// Headers are consulted in order; the first one carrying a valid IP wins.
	// Nil uses DefaultClientKeyHeaders.
	Headers []string

	// TrustedProxyCount is how many right-most X-Forwarded-For entries were
	// appended by proxies we operate. Zero takes the left-most entry.
	TrustedProxyCount int

	// UseRemoteAddr falls back to the connection's peer address before Fallback.
	UseRemoteAddr bool

	// Fallback is returned when nothing else identifies the client.
	// Empty uses LoopbackClientKey.
	Fallback string
}

// ClientKey returns the identity used to key the request's rate-limit counter.
func (e ClientKeyExtractor) ClientKey(r *http.Request) string {
	headers := e.Headers
	if headers == nil {
		headers = DefaultClientKeyHeaders
	}

	for _, h := range headers {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		if http.CanonicalHeaderKey(h) == "X-Forwarded-For" {
			if ip := extractIPFromXFF(value, e.TrustedProxyCount); ip != "" {
				return ip
			}
			continue
		}
		if ip := parseIP(value); ip != "" {
			return ip
		}
	}

	if e.UseRemoteAddr {
		if ip := extractIPFromRemoteAddr(r.RemoteAddr); ip != "" {
			return ip
		}
	}

	if e.Fallback != "" {
		return e.Fallback
	}
	return LoopbackClientKey
}

// extractIPFromXFF parses the X-Forwarded-For header and extracts the client IP.
// Format is "client-ip, proxy1, proxy2"; the right-most trustedProxyCount
// entries belong to our own proxies.
func extractIPFromXFF(xff string, trustedProxyCount int) string {
	ips := strings.Split(xff, ",")

	clientIndex := len(ips) - trustedProxyCount - 1
	if trustedProxyCount == 0 || clientIndex < 0 {
		clientIndex = 0
	}

	return parseIP(ips[clientIndex])
}

// parseIP returns the canonical form of s if it is an IP address.
func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// extractIPFromRemoteAddr extracts the IP from RemoteAddr for direct connections.
func extractIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return parseIP(remoteAddr)
	}
	return parseIP(host)
}
