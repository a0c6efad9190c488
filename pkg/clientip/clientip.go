// Package clientip resolves the address a request came from, honouring the
// forwarding headers set by the reverse proxies fundkit is deployed behind.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Headers consulted in order before falling back to RemoteAddr.
var forwardHeaders = []string{"CF-Connecting-IP", "X-Real-IP"}

// FromRequest returns the normalised client IP or "" when nothing usable
// is present.
func FromRequest(r *http.Request) string {
	for _, h := range forwardHeaders {
		if ip := normalize(r.Header.Get(h)); ip != "" {
			return ip
		}
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for part := range strings.SplitSeq(fwd, ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

func normalize(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
