// Package clientip derives the client identity used to key rate-limit and
// concurrency counters. It prefers proxy-forwarded headers over the
// transport peer address, since the service normally runs behind a load
// balancer that rewrites RemoteAddr.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when no usable address can be derived from the
// request. It still produces a stable counter key, so misconfigured
// proxies share one budget instead of escaping limits entirely.
const Unknown = "unknown"

// GetIP extracts the originating client address from the request.
//
// Resolution order:
//  1. First entry of the X-Forwarded-For chain (the original client as
//     reported by the outermost proxy).
//  2. X-Real-IP.
//  3. The host portion of RemoteAddr.
//  4. The literal "unknown".
func GetIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		return addr
	}

	return Unknown
}
