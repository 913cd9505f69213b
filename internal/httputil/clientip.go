package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address of the client that issued r. When
// trustProxy is set the RFC 7239 Forwarded header is consulted first, then
// X-Forwarded-For and X-Real-IP; the leftmost hop is taken as the client.
// Otherwise only RemoteAddr is used. Ports and IPv6 brackets are stripped.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedFor(r.Header.Get("Forwarded")); ip != "" {
			return ip
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return stripPort(ip)
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return stripPort(xri)
		}
	}
	return stripPort(r.RemoteAddr)
}

// forwardedFor extracts the for= parameter of the first Forwarded element.
// Obfuscated identifiers such as "unknown" or "_hidden" yield "".
func forwardedFor(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	for _, pair := range strings.Split(first, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(key, "for") {
			continue
		}
		value = strings.Trim(value, `"`)
		ip := stripPort(value)
		if net.ParseIP(ip) == nil {
			return ""
		}
		return ip
	}
	return ""
}

// stripPort removes an optional port and IPv6 brackets from addr.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
