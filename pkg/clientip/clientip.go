// Package clientip extracts the originating client address from a request,
// honoring proxy headers before falling back to the socket address.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP returns the client address for r. X-Forwarded-For wins (first valid
// entry, the one closest to the client), then X-Real-IP, then RemoteAddr.
// Returns an empty string when nothing parses as an IP.
func GetIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for _, part := range strings.Split(fwd, ",") {
			if ip := parseIP(strings.TrimSpace(part)); ip != "" {
				return ip
			}
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		if ip := parseIP(strings.TrimSpace(real)); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
